package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrServiceError is returned when the service answered the request but
// reported a failure in its payload rather than transport-level trouble.
var ErrServiceError = errors.New("inference: service reported an error")

type clientImpl struct {
	baseURL      string
	websocketURL string
	timeout      time.Duration
	httpClient   *http.Client
}

type Config struct {
	BaseURL      string
	WebsocketURL string
	Timeout      time.Duration
}

func NewClient(cfg *Config) (API, error) {
	if cfg == nil {
		return nil, errors.New("inference: config is nil")
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("inference: base URL is empty")
	}

	if cfg.WebsocketURL == "" {
		return nil, errors.New("inference: websocket URL is empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &clientImpl{
		baseURL:      cfg.BaseURL,
		websocketURL: cfg.WebsocketURL,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

type transcribeRequest struct {
	Audio string `json:"audio"`
}

type transcribeResponse struct {
	Status        string `json:"status"`
	Transcription string `json:"transcription"`
	Error         string `json:"error"`
}

func (client *clientImpl) Transcribe(ctx context.Context, clip []byte) (string, error) {
	if len(clip) == 0 {
		return "", errors.New("inference: clip is empty")
	}

	req := transcribeRequest{Audio: base64.StdEncoding.EncodeToString(clip)}

	var resp transcribeResponse
	if err := client.postJSON(ctx, "/voice/transcribe", req, &resp); err != nil {
		return "", err
	}

	if resp.Status != "success" {
		return "", fmt.Errorf("%w: transcribe: %s", ErrServiceError, resp.Error)
	}

	return resp.Transcription, nil
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

type synthesizeResponse struct {
	Status string `json:"status"`
	Audio  string `json:"audio"`
	Error  string `json:"error"`
}

func (client *clientImpl) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("inference: text is empty")
	}

	var resp synthesizeResponse
	if err := client.postJSON(ctx, "/voice/synthesize", synthesizeRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "success" {
		return nil, fmt.Errorf("%w: synthesize: %s", ErrServiceError, resp.Error)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return nil, fmt.Errorf("inference: decode audio payload: %w", err)
	}

	return audio, nil
}

func (client *clientImpl) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("inference: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inference: new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference: %s: %w", path, err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("inference: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference: %s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("inference: decode response: %w", err)
	}

	return nil
}
