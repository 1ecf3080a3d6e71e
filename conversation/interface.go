package conversation

import (
	"context"

	"github.com/mahatoankit/CampusConvo/endpointing"
	"github.com/mahatoankit/CampusConvo/wake_word"
)

// Gate is the wake-word listener the conversation coordinates with. Pause
// must not return until the gate has released the input device.
type Gate interface {
	Pause(ctx context.Context) error
	Resume()
	Events() <-chan wake_word.Activation
}

// Recorder is one exclusive endpointed capture of the input device, used
// here to record the user's question.
type Recorder interface {
	Record(ctx context.Context) (*endpointing.Utterance, error)
}

// State names where a session currently is. One state at a time; every
// transition is logged.
type State string

const (
	StateIdleListening  State = "idle-listening"
	StateActivated      State = "activated"
	StateAwaitingQuery  State = "awaiting-query"
	StateAwaitingAnswer State = "awaiting-remote-response"
	StateSpeaking       State = "speaking"
	StateExiting        State = "exiting"
)
