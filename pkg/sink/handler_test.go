package sink

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonas-merkle/slacksink/internal/testutils"
)

func newHandlerSink(t *testing.T) (*Sink, *testutils.RecordingPoster) {
	t.Helper()
	poster := &testutils.RecordingPoster{}
	s, err := New(testConfig(), WithPoster(poster))
	assert.NoError(t, err)
	return s, poster
}

func TestHandler_LevelGate(t *testing.T) {
	s, poster := newHandlerSink(t)
	logger := slog.New(NewHandler(s, slog.LevelWarn))

	logger.Info("ignored")
	logger.Debug("also ignored")
	logger.Warn("kept")
	s.Flush(context.TODO())

	messages := poster.Messages()
	assert.Equal(t, 1, len(messages))
	assert.Contains(t, messages[0].Text, "kept")
	assert.Contains(t, messages[0].Text, "WARN")
}

func TestHandler_AttrsBecomeFields(t *testing.T) {
	s, poster := newHandlerSink(t)
	logger := slog.New(NewHandler(s, slog.LevelInfo)).With("service", "api")

	logger.Error("request failed", "status", 502, "err", errors.New("bad gateway"))
	s.Flush(context.TODO())

	messages := poster.Messages()
	assert.Equal(t, 1, len(messages))

	msg := messages[0]
	assert.Contains(t, msg.Text, "request failed")

	// Error detail lands in its own attachment, attrs in field rows.
	assert.Equal(t, 2, len(msg.Attachments))
	assert.Contains(t, msg.Attachments[1].Text, "bad gateway")

	titles := make(map[string]string)
	for _, f := range msg.Attachments[0].Fields {
		titles[f.Title] = f.Value
	}
	assert.Equal(t, "api", titles["service"])
	assert.Equal(t, "502", titles["status"])
}

func TestHandler_WithAttrsDoesNotMutateParent(t *testing.T) {
	s, poster := newHandlerSink(t)

	base := NewHandler(s, slog.LevelInfo)
	child := base.WithAttrs([]slog.Attr{slog.String("component", "worker")})

	slog.New(base).Info("from base")
	slog.New(child).Info("from child")
	s.Flush(context.TODO())

	messages := poster.Messages()
	assert.Equal(t, 2, len(messages))

	baseFields := messages[0].Attachments[0].Fields
	for _, f := range baseFields {
		assert.NotEqual(t, "component", f.Title)
	}

	childTitles := make([]string, 0)
	for _, f := range messages[1].Attachments[0].Fields {
		childTitles = append(childTitles, f.Title)
	}
	assert.Contains(t, childTitles, "component")
}
