package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonas-merkle/slacksink/pkg/core"
	"github.com/jonas-merkle/slacksink/pkg/sink"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := sink.New(cfg.Sink, sink.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Msg("failed to build sink")
		os.Exit(1)
	}
	s.Start()

	in := &reader{
		inputFile:    cfg.InputFile,
		defaultLevel: core.ParseLevel(cfg.DefaultLevel, core.LevelInfo),
		emit:         s.Emit,
		log:          log,
	}

	readerDone := make(chan error, 1)
	go func() {
		readerDone <- in.run(ctx)
	}()

	if cfg.StatsInterval > 0 {
		go reportStats(ctx, s, log, cfg.StatsInterval)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalChan:
		log.Info().Msg("received shutdown signal")
		cancel()
	case err := <-readerDone:
		if err != nil {
			log.Error().Err(err).Msg("input reader stopped")
		} else {
			log.Info().Msg("input exhausted")
		}
	}

	if err := s.Close(); err != nil {
		log.Error().Err(err).Msg("sink shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("shut down cleanly")
}

func reportStats(ctx context.Context, s *sink.Sink, log zerolog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.Stats()
			log.Info().
				Int("enqueued", stats.Enqueued).
				Int("dropped", stats.Dropped).
				Int("batches", stats.BatchesFlushed).
				Int("events_flushed", stats.EventsFlushed).
				Msg("forwarding stats")
		case <-ctx.Done():
			return
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
