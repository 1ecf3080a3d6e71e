// Package playback plays synthesized audio clips through whichever system
// player is available. Player binaries are probed once at startup; every
// Play call reuses that decision.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// ErrNoPlayer is returned when no probed player can handle the clip's
// format. Recoverable: the caller logs it and keeps listening.
var ErrNoPlayer = errors.New("playback: no player available for format")

// ErrUnknownFormat is returned when the clip matches no known container.
var ErrUnknownFormat = errors.New("playback: unrecognized audio format")

type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// Interface plays a complete audio clip, blocking until playback finishes
// or fails.
type Interface interface {
	Play(ctx context.Context, clip []byte) error
}

type command struct {
	name string
	args []string
}

var wavCandidates = []command{
	{name: "aplay", args: []string{"-q"}},
	{name: "paplay"},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{name: "afplay"},
}

var mp3Candidates = []command{
	{name: "mpg123", args: []string{"-q"}},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{name: "afplay"},
}

// LookPath resolves a binary name to a path, exec.LookPath in production.
type LookPath func(file string) (string, error)

// RunCommand executes a player process to completion.
type RunCommand func(ctx context.Context, name string, args ...string) error

type playerImpl struct {
	fileSys afero.Fs
	run     RunCommand
	wavCmd  *command
	mp3Cmd  *command
}

type Config struct {
	FileSys afero.Fs

	// LookPath and Run default to the exec package; tests swap them out.
	LookPath LookPath
	Run      RunCommand
}

// New probes the candidate players once and returns an immutable player
// descriptor. A host with no players still constructs; each Play then fails
// with ErrNoPlayer instead of crashing the session.
func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, errors.New("playback: config is nil")
	}

	if cfg.FileSys == nil {
		return nil, errors.New("playback: fileSys is nil")
	}

	look := cfg.LookPath
	if look == nil {
		look = exec.LookPath
	}

	run := cfg.Run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		}
	}

	p := &playerImpl{
		fileSys: cfg.FileSys,
		run:     run,
		wavCmd:  probe(look, wavCandidates),
		mp3Cmd:  probe(look, mp3Candidates),
	}

	if p.wavCmd == nil && p.mp3Cmd == nil {
		slog.Warn("no audio players found; responses will not be audible")
	} else {
		slog.Info("audio players negotiated",
			"wav", commandName(p.wavCmd), "mp3", commandName(p.mp3Cmd))
	}

	return p, nil
}

func probe(look LookPath, candidates []command) *command {
	for _, candidate := range candidates {
		if _, err := look(candidate.name); err == nil {
			c := candidate

			return &c
		}
	}

	return nil
}

func commandName(c *command) string {
	if c == nil {
		return "none"
	}

	return c.name
}

// DetectFormat sniffs the clip's container from its leading bytes.
func DetectFormat(clip []byte) (Format, error) {
	if len(clip) >= 12 && bytes.Equal(clip[0:4], []byte("RIFF")) && bytes.Equal(clip[8:12], []byte("WAVE")) {
		return FormatWAV, nil
	}

	if len(clip) >= 3 && bytes.Equal(clip[0:3], []byte("ID3")) {
		return FormatMP3, nil
	}

	if len(clip) >= 2 && clip[0] == 0xFF && clip[1]&0xE0 == 0xE0 {
		return FormatMP3, nil
	}

	return "", ErrUnknownFormat
}

func (p *playerImpl) Play(ctx context.Context, clip []byte) error {
	if len(clip) == 0 {
		return errors.New("playback: clip is empty")
	}

	format, err := DetectFormat(clip)
	if err != nil {
		return err
	}

	var cmd *command

	switch format {
	case FormatWAV:
		cmd = p.wavCmd

		if d := wavDuration(clip); d > 0 {
			slog.Debug("playing wav clip", "duration", d)
		}
	case FormatMP3:
		cmd = p.mp3Cmd
	}

	if cmd == nil {
		return fmt.Errorf("%w: %s", ErrNoPlayer, format)
	}

	clipFile, err := afero.TempFile(p.fileSys, "", "campusconvo-*."+string(format))
	if err != nil {
		return fmt.Errorf("playback: create temp file: %w", err)
	}

	name := clipFile.Name()
	defer p.fileSys.Remove(name)

	if _, err := clipFile.Write(clip); err != nil {
		clipFile.Close()

		return fmt.Errorf("playback: write clip: %w", err)
	}

	if err := clipFile.Close(); err != nil {
		return fmt.Errorf("playback: close clip: %w", err)
	}

	args := append(append([]string{}, cmd.args...), name)
	if err := p.run(ctx, cmd.name, args...); err != nil {
		return fmt.Errorf("playback: %s: %w", cmd.name, err)
	}

	return nil
}

func wavDuration(clip []byte) time.Duration {
	decoder := wav.NewDecoder(bytes.NewReader(clip))

	duration, err := decoder.Duration()
	if err != nil {
		return 0
	}

	return duration
}
