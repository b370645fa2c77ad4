package testutils

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonas-merkle/slacksink/pkg/slack"
)

// RecordingPoster captures every message handed to it, optionally
// failing selected posts. It satisfies the sink's Poster interface
// and io.Closer.
type RecordingPoster struct {
	mu       sync.Mutex
	Posted   []slack.Message
	Delay    time.Duration
	CloseErr error
	Closed   int

	// FailOn marks 1-based post indexes that should fail.
	FailOn map[int]bool

	calls int
}

func (p *RecordingPoster) Post(_ context.Context, msg slack.Message) error {
	if p.Delay > 0 {
		time.Sleep(p.Delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.FailOn[p.calls] {
		return fmt.Errorf("mock post %d failed", p.calls)
	}
	p.Posted = append(p.Posted, msg)
	return nil
}

func (p *RecordingPoster) PostToChannels(ctx context.Context, msg slack.Message, channels []string) []slack.Result {
	if len(channels) == 0 {
		return []slack.Result{{Channel: msg.Channel, Err: p.Post(ctx, msg)}}
	}
	results := make([]slack.Result, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch string) {
			defer wg.Done()
			results[i] = slack.Result{Channel: ch, Err: p.Post(ctx, msg.WithChannel(ch))}
		}(i, ch)
	}
	wg.Wait()
	return results
}

func (p *RecordingPoster) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed++
	return p.CloseErr
}

func (p *RecordingPoster) Messages() []slack.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]slack.Message, len(p.Posted))
	copy(out, p.Posted)
	return out
}

func (p *RecordingPoster) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// RecordingTransport is a RoundTripper that answers every request with
// the configured status and tracks idle-connection release.
type RecordingTransport struct {
	mu        sync.Mutex
	Status    int
	Requests  []*http.Request
	IdleClose int
}

func (t *RecordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.Requests = append(t.Requests, req)
	status := t.Status
	t.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       http.NoBody,
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (t *RecordingTransport) CloseIdleConnections() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.IdleClose++
}

func (t *RecordingTransport) RequestCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Requests)
}
