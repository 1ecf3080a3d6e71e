package inference

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
)

const defaultTopK = 5

type queryMessage struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type answerMessage struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Response string   `json:"response"`
	Error    string   `json:"error"`
	Sources  []Source `json:"sources"`
}

// Answer runs one question over the websocket answer contract. The service
// streams progress messages while retrieval and generation run; the call
// returns on the first complete or error message, or when the per-call
// timeout elapses.
func (client *clientImpl) Answer(ctx context.Context, query string) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, client.websocketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("inference: dial %s: %w", client.websocketURL, err)
	}

	defer conn.Close()

	if err := conn.WriteJSON(queryMessage{Query: query, TopK: defaultTopK}); err != nil {
		return nil, fmt.Errorf("inference: send query: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("inference: set read deadline: %w", err)
		}
	}

	for {
		var msg answerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("inference: read answer: %w", err)
		}

		switch msg.Status {
		case "processing":
			slog.Debug("answer in progress", "message", msg.Message)

		case "complete":
			for i, source := range msg.Sources {
				slog.Debug("answer source",
					"rank", i+1, "title", source.Title, "similarity", source.Similarity)
			}

			return &Answer{Text: msg.Response, Sources: msg.Sources}, nil

		case "error":
			return nil, fmt.Errorf("%w: answer: %s", ErrServiceError, msg.Error)

		default:
			return nil, fmt.Errorf("inference: unexpected answer status %q", msg.Status)
		}
	}
}
