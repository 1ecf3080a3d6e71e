package inference

import "context"

// Source describes one retrieved document backing an answer. Informational
// only; the voice client logs them and nothing more.
type Source struct {
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// Answer is the remote service's reply to one question.
type Answer struct {
	Text    string
	Sources []Source
}

// API is the request/response boundary to the remote inference service. The
// three operations are independent: a failure in one is handled on its own,
// no atomicity is assumed across them.
type API interface {
	// Transcribe submits a complete encoded audio clip and returns the
	// recognized text, which may be empty when nothing was understood.
	Transcribe(ctx context.Context, clip []byte) (string, error)

	// Answer submits a question and returns the generated answer.
	Answer(ctx context.Context, query string) (*Answer, error)

	// Synthesize returns an encoded audio clip speaking the given text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber is the subset of API the wake-word gate needs.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte) (string, error)
}
