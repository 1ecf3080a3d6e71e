package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (API, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		BaseURL:      srv.URL,
		WebsocketURL: "ws" + srv.URL[len("http"):] + "/ws",
		Timeout:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return client, srv
}

func TestClient_Transcribe(t *testing.T) {
	clip := []byte("RIFF fake wav payload")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req transcribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		decoded, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			t.Fatalf("audio payload is not base64: %v", err)
		}

		if string(decoded) != string(clip) {
			t.Error("audio payload does not round-trip")
		}

		json.NewEncoder(w).Encode(transcribeResponse{
			Status:        "success",
			Transcription: "where is the library",
		})
	})

	client, _ := newTestClient(t, handler)

	text, err := client.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "where is the library" {
		t.Errorf("unexpected transcription %q", text)
	}
}

func TestClient_Transcribe_ServiceError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transcribeResponse{Status: "error", Error: "no model loaded"})
	})

	client, _ := newTestClient(t, handler)

	_, err := client.Transcribe(context.Background(), []byte("clip"))
	if !errors.Is(err, ErrServiceError) {
		t.Fatalf("expected ErrServiceError, got %v", err)
	}
}

func TestClient_Transcribe_HTTPError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, handler)

	if _, err := client.Transcribe(context.Background(), []byte("clip")); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestClient_Synthesize(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/synthesize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Text != "Hello there" {
			t.Errorf("unexpected text %q", req.Text)
		}

		json.NewEncoder(w).Encode(synthesizeResponse{
			Status: "success",
			Audio:  base64.StdEncoding.EncodeToString(audio),
		})
	})

	client, _ := newTestClient(t, handler)

	got, err := client.Synthesize(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if string(got) != string(audio) {
		t.Error("synthesized audio does not round-trip")
	}
}

func TestClient_Timeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		BaseURL:      srv.URL,
		WebsocketURL: "ws://unused/ws",
		Timeout:      20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), []byte("clip")); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("expected error for nil config")
	}

	if _, err := NewClient(&Config{WebsocketURL: "ws://x/ws"}); err == nil {
		t.Error("expected error for missing base URL")
	}

	if _, err := NewClient(&Config{BaseURL: "http://x"}); err == nil {
		t.Error("expected error for missing websocket URL")
	}
}
