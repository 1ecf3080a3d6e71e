// CampusConvo voice client: listens for a wake phrase, records the
// question that follows, and speaks the campus assistant's answer.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/mahatoankit/CampusConvo/clients/inference"
	"github.com/mahatoankit/CampusConvo/config"
	"github.com/mahatoankit/CampusConvo/conversation"
	"github.com/mahatoankit/CampusConvo/endpointing"
	"github.com/mahatoankit/CampusConvo/frame_source"
	"github.com/mahatoankit/CampusConvo/playback"
	"github.com/mahatoankit/CampusConvo/vad"
	"github.com/mahatoankit/CampusConvo/wake_word"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to the configuration file")
	flag.Parse()

	fileSys := afero.NewOsFs()

	cfg, err := config.Load(fileSys, *configPath)
	if err != nil {
		slog.Error("configuration failed", "err", err)

		return 1
	}

	level, err := cfg.Level()
	if err != nil {
		slog.Error("configuration failed", "err", err)

		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	classifier, err := vad.New(&vad.Config{
		Engine:         cfg.VAD.Engine,
		SampleRate:     cfg.Audio.SampleRate,
		FrameDuration:  cfg.Audio.FrameDuration.Duration,
		Aggressiveness: cfg.VAD.Aggressiveness,
	})
	if err != nil {
		slog.Error("could not build frame classifier", "err", err)

		return 1
	}

	slog.Info("frame classifier ready", "engine", classifier.Name())

	source, err := frame_source.Open(&frame_source.Config{
		SampleRate:    cfg.Audio.SampleRate,
		FrameDuration: cfg.Audio.FrameDuration.Duration,
	})
	if err != nil {
		slog.Error("could not open audio input", "err", err)

		return 1
	}

	defer source.Close()

	lease := frame_source.NewLease(source)

	wakeEngine, err := endpointing.New(classifier, &endpointing.Config{
		SilenceThreshold:     cfg.WakeCapture.SilenceThreshold.Duration,
		MaxDuration:          cfg.WakeCapture.MaxDuration.Duration,
		MinConsecutiveSpeech: cfg.MinConsecutiveSpeech.Duration,
	})
	if err != nil {
		slog.Error("could not build wake endpointing", "err", err)

		return 1
	}

	queryEngine, err := endpointing.New(classifier, &endpointing.Config{
		SilenceThreshold:     cfg.QueryCapture.SilenceThreshold.Duration,
		MaxDuration:          cfg.QueryCapture.MaxDuration.Duration,
		MinConsecutiveSpeech: cfg.MinConsecutiveSpeech.Duration,
	})
	if err != nil {
		slog.Error("could not build query endpointing", "err", err)

		return 1
	}

	wakeRecorder, err := frame_source.NewRecorder(lease, wakeEngine)
	if err != nil {
		slog.Error("could not build wake recorder", "err", err)

		return 1
	}

	queryRecorder, err := frame_source.NewRecorder(lease, queryEngine)
	if err != nil {
		slog.Error("could not build query recorder", "err", err)

		return 1
	}

	client, err := inference.NewClient(&inference.Config{
		BaseURL:      cfg.Server.BaseURL,
		WebsocketURL: cfg.Server.WebsocketURL,
		Timeout:      cfg.Server.Timeout.Duration,
	})
	if err != nil {
		slog.Error("could not build inference client", "err", err)

		return 1
	}

	player, err := playback.New(&playback.Config{FileSys: fileSys})
	if err != nil {
		slog.Error("could not set up playback", "err", err)

		return 1
	}

	gate, err := wake_word.New(&wake_word.Config{
		Recorder:    wakeRecorder,
		Transcriber: client,
		FileSys:     fileSys,
		Phrases:     cfg.WakePhrases,
	})
	if err != nil {
		slog.Error("could not build wake word gate", "err", err)

		return 1
	}

	machine, err := conversation.New(&conversation.Config{
		Gate:                 gate,
		Recorder:             queryRecorder,
		Client:               client,
		Player:               player,
		FileSys:              fileSys,
		ExitPhrases:          cfg.Conversation.ExitPhrases,
		Greeting:             cfg.Conversation.Greeting,
		Goodbye:              cfg.Conversation.Goodbye,
		MaxConsecutiveErrors: cfg.Conversation.MaxConsecutiveErrors,
	})
	if err != nil {
		slog.Error("could not build conversation", "err", err)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(groupCtx)

	group.Go(func() error {
		return gate.Run(runCtx)
	})

	group.Go(func() error {
		// The conversation ending, for any reason, takes the gate down too.
		defer cancel()

		return machine.Run(runCtx)
	})

	err = group.Wait()
	cancel()

	switch {
	case err == nil:
		slog.Info("session ended")

		return 0
	case errors.Is(err, conversation.ErrTooManyFailures):
		slog.Error("session ended after repeated remote failures", "err", err)

		return 1
	default:
		slog.Error("session failed", "err", err)

		return 1
	}
}
