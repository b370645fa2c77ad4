package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonas-merkle/slacksink/pkg/batch"
	"github.com/jonas-merkle/slacksink/pkg/core"
	"github.com/jonas-merkle/slacksink/pkg/format"
	"github.com/jonas-merkle/slacksink/pkg/slack"
)

// Poster delivers formatted messages. *slack.Client is the production
// implementation; tests substitute their own.
type Poster interface {
	Post(ctx context.Context, msg slack.Message) error
	PostToChannels(ctx context.Context, msg slack.Message, channels []string) []slack.Result
}

// Sink wires the batching scheduler, the formatter and the delivery
// client together and exposes the lifecycle the host pipeline drives:
// Start, Emit, Flush, Close. Every constructor option has a usable
// default, so New(cfg) alone yields a working sink.
type Sink struct {
	config    core.Config
	formatter format.Formatter
	poster    Poster
	sw        *Switch
	sched     *batch.Scheduler
	log       zerolog.Logger

	// Resources released on Close, in order.
	closers []io.Closer
}

type Option func(*options)

type options struct {
	sw         *Switch
	httpClient *http.Client
	poster     Poster
	formatter  format.Formatter
	log        zerolog.Logger
	haveLog    bool
}

// WithSwitch shares an activation switch with the sink. Without it the
// sink creates its own, initially active.
func WithSwitch(sw *Switch) Option {
	return func(o *options) { o.sw = sw }
}

// WithHTTPClient supplies the HTTP transport for deliveries. The sink
// takes ownership: Close releases its idle connections.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithPoster replaces the whole delivery client. If the poster is an
// io.Closer the sink closes it on Close.
func WithPoster(p Poster) Option {
	return func(o *options) { o.poster = p }
}

// WithTextFormatter overrides how the message text is rendered.
func WithTextFormatter(f format.TextFunc) Option {
	return func(o *options) { o.formatter.Text = f }
}

// WithAttachmentsFormatter overrides how attachments are rendered.
func WithAttachmentsFormatter(f format.AttachmentsFunc) Option {
	return func(o *options) { o.formatter.Attachments = f }
}

// WithBlocksFormatter overrides how Block Kit blocks are rendered.
func WithBlocksFormatter(f format.BlocksFunc) Option {
	return func(o *options) { o.formatter.Blocks = f }
}

// WithLogger routes sink diagnostics to log. The default logger is
// disabled; the sink never logs through itself.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log; o.haveLog = true }
}

func New(cfg core.Config, opts ...Option) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if !o.haveLog {
		o.log = zerolog.Nop()
	}
	if o.sw == nil {
		o.sw = NewSwitch(true)
	}

	s := &Sink{
		config:    cfg,
		formatter: o.formatter,
		sw:        o.sw,
		log:       o.log,
	}

	httpClient := o.httpClient
	if o.poster != nil {
		s.poster = o.poster
	} else {
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
		s.poster = slack.NewClient(cfg.WebhookURL, cfg.Timeout,
			slack.WithHTTPClient(httpClient),
			slack.WithRateLimit(cfg.RatePerSec),
			slack.WithLogger(o.log),
		)
	}

	// The sink owns both the client and the transport; release the
	// client first so in-flight handles go before the connection pool.
	if c, ok := s.poster.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if httpClient != nil {
		hc := httpClient
		s.closers = append(s.closers, closerFunc(func() error {
			hc.CloseIdleConnections()
			return nil
		}))
	}

	s.sched = batch.NewScheduler(context.Background(), batch.Config{
		BatchSize:     cfg.BatchSize,
		FlushPeriod:   cfg.FlushPeriod,
		QueueCapacity: cfg.QueueCapacity,
	}, s.emitBatch, o.log)

	return s, nil
}

// Start launches the batching scheduler. Events emitted before Start
// are queued and picked up once it runs.
func (s *Sink) Start() {
	s.log.Info().
		Str("webhook", s.config.WebhookURL).
		Int("batch_size", s.config.BatchSize).
		Dur("flush_period", s.config.FlushPeriod).
		Msg("slack sink started")
	s.sched.Start()
}

// Emit hands one event to the sink. It never blocks on delivery and
// never fails; events beyond the queue capacity displace the oldest.
func (s *Sink) Emit(event core.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.sched.Enqueue(event)
}

// Flush synchronously delivers everything currently queued.
func (s *Sink) Flush(ctx context.Context) {
	s.sched.Flush(ctx)
}

// Switch returns the activation switch for external control.
func (s *Sink) Switch() *Switch { return s.sw }

// Stats returns a snapshot of the scheduler counters.
func (s *Sink) Stats() batch.Metrics { return s.sched.Metrics() }

// Close stops the scheduler (one final flush attempt included), then
// releases the delivery client and the transport. Every release is
// attempted even when an earlier one fails; the failures are joined.
func (s *Sink) Close() error {
	s.sched.Stop()

	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.log.Info().Msg("slack sink stopped")
	return nil
}

// emitBatch is the per-batch callback. The activation switch is read
// once here: an inactive switch discards the whole batch before any
// formatting or delivery happens. Events are processed strictly in
// order; a failed delivery never stops the events after it.
func (s *Sink) emitBatch(ctx context.Context, events []core.Event) {
	if !s.sw.IsActive() {
		s.log.Debug().Int("events", len(events)).Msg("sink inactive, batch discarded")
		return
	}

	for _, event := range events {
		msg := s.formatter.Build(event, s.config)

		if len(s.config.Channels) > 0 {
			results := s.poster.PostToChannels(ctx, msg, s.config.Channels)
			for _, r := range results {
				if !r.OK() {
					s.log.Warn().Str("channel", r.Channel).Err(r.Err).Msg("channel post failed")
				}
			}
			continue
		}

		if err := s.poster.Post(ctx, msg); err != nil {
			s.log.Warn().Err(err).Msg("post failed")
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
