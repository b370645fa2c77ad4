package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hpcloud/tail"
	"github.com/rs/zerolog"

	"github.com/jonas-merkle/slacksink/pkg/core"
)

// reader turns an input stream into sink events: a tailed log file
// when a path is configured, stdin otherwise. Lines that parse as JSON
// records keep their level, message and fields; anything else is
// forwarded verbatim at the default level.
type reader struct {
	inputFile    string
	defaultLevel core.Level
	emit         func(core.Event)
	log          zerolog.Logger
}

func (r *reader) run(ctx context.Context) error {
	if r.inputFile != "" {
		return r.tailFile(ctx)
	}
	return r.readStream(ctx, os.Stdin)
}

func (r *reader) tailFile(ctx context.Context) error {
	t, err := tail.TailFile(r.inputFile, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail file %s: %w", r.inputFile, err)
	}
	defer t.Cleanup()

	for {
		select {
		case line := <-t.Lines:
			if line == nil {
				return nil
			}
			if line.Err != nil {
				r.log.Warn().Str("file", r.inputFile).Err(line.Err).Msg("tail read error")
				continue
			}
			r.emit(r.parseLine(line.Text))
		case <-ctx.Done():
			return t.Stop()
		}
	}
}

func (r *reader) readStream(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		r.emit(r.parseLine(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// parseLine decodes one input line. The field names cover the common
// structured-logging encoders; unknown keys become event fields.
func (r *reader) parseLine(line string) core.Event {
	event := core.Event{
		Timestamp: time.Now(),
		Level:     r.defaultLevel,
		Message:   line,
	}

	if len(line) == 0 || line[0] != '{' {
		return event
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return event
	}

	fields := make(map[string]any)
	for key, value := range record {
		switch key {
		case "msg", "message":
			if s, ok := value.(string); ok {
				event.Message = s
			}
		case "level", "lvl", "severity":
			if s, ok := value.(string); ok {
				event.Level = core.ParseLevel(s, r.defaultLevel)
			}
		case "time", "ts", "timestamp":
			if ts, ok := parseTimestamp(value); ok {
				event.Timestamp = ts
			}
		case "error", "err":
			if s, ok := value.(string); ok && s != "" {
				event.Err = errors.New(s)
			}
		default:
			fields[key] = value
		}
	}
	if len(fields) > 0 {
		event.Fields = fields
	}
	return event
}

func parseTimestamp(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts, true
			}
		}
	case float64:
		sec := int64(x)
		return time.Unix(sec, int64((x-float64(sec))*1e9)), true
	}
	return time.Time{}, false
}
