package format

import (
	"fmt"
	"sort"

	"github.com/jonas-merkle/slacksink/pkg/core"
	"github.com/jonas-merkle/slacksink/pkg/slack"
)

// TextFunc renders the message text for one event.
type TextFunc func(event core.Event, cfg core.Config) string

// AttachmentsFunc renders the attachment list for one event.
type AttachmentsFunc func(event core.Event, cfg core.Config) []slack.Attachment

// BlocksFunc renders the Block Kit blocks for one event.
type BlocksFunc func(event core.Event, cfg core.Config) []slack.Block

// Formatter bundles the three rendering strategies. Each member is
// independent: a nil member falls back to the package default at Build
// time, so callers override only what they care about. All three
// strategies must be pure and must not panic for any well-formed event.
type Formatter struct {
	Text        TextFunc
	Attachments AttachmentsFunc
	Blocks      BlocksFunc
}

// Build converts one event into a complete webhook message, filling
// identity and behavior fields from the configuration. The channel
// field is left to the delivery path, which owns channel targeting.
func (f Formatter) Build(event core.Event, cfg core.Config) slack.Message {
	text := f.Text
	if text == nil {
		text = DefaultText
	}
	attachments := f.Attachments
	if attachments == nil {
		attachments = DefaultAttachments
	}
	blocks := f.Blocks
	if blocks == nil {
		blocks = DefaultBlocks
	}

	return slack.Message{
		Username:        cfg.Username,
		IconEmoji:       cfg.IconEmoji,
		IconURL:         cfg.IconURL,
		Text:            text(event, cfg),
		Mrkdwn:          cfg.Markdown,
		LinkNames:       cfg.LinkNames,
		Parse:           cfg.Parse,
		ThreadTS:        cfg.ThreadTS,
		ReplaceOriginal: cfg.ReplaceOriginal,
		DeleteOriginal:  cfg.DeleteOriginal,
		ResponseType:    cfg.ResponseType,
		Attachments:     attachments(event, cfg),
		Blocks:          blocks(event, cfg),
	}
}

// DefaultText renders "LEVEL: message".
func DefaultText(event core.Event, _ core.Config) string {
	return fmt.Sprintf("%s: %s", event.Level, event.Message)
}

// DefaultAttachments renders one attachment colored by severity with
// the timestamp, level and structured fields as short field rows, plus
// a second attachment carrying error detail when the event has one.
func DefaultAttachments(event core.Event, _ core.Config) []slack.Attachment {
	fields := []slack.AttachmentField{
		{Title: "Level", Value: event.Level.String(), Short: true},
		{Title: "Timestamp", Value: event.Timestamp.Format("2006-01-02 15:04:05 MST"), Short: true},
	}

	for _, key := range sortedKeys(event.Fields) {
		fields = append(fields, slack.AttachmentField{
			Title: key,
			Value: safeString(event.Fields[key]),
			Short: true,
		})
	}

	attachments := []slack.Attachment{
		{
			Fallback: event.Message,
			Color:    LevelColor(event.Level),
			Fields:   fields,
			MrkdwnIn: []string{"fields"},
			Ts:       event.Timestamp.Unix(),
		},
	}

	if event.Err != nil {
		attachments = append(attachments, slack.Attachment{
			Fallback: "error detail",
			Color:    "danger",
			Title:    "Error",
			Text:     safeString(event.Err),
			MrkdwnIn: []string{"text"},
		})
	}

	return attachments
}

// DefaultBlocks emits no blocks; the attachment layout is the default
// rendering. Supply a BlocksFunc to switch to Block Kit output.
func DefaultBlocks(core.Event, core.Config) []slack.Block {
	return nil
}

// LevelColor maps a severity to an attachment color.
func LevelColor(level core.Level) string {
	switch level {
	case core.LevelDebug:
		return "#777777"
	case core.LevelInfo:
		return "good"
	case core.LevelWarn:
		return "warning"
	case core.LevelError, core.LevelFatal:
		return "danger"
	default:
		return "good"
	}
}

// safeString stringifies any field value, degrading to a placeholder
// when the value's own formatting panics. Formatting must never fail
// the batch.
func safeString(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<unprintable %T>", v)
		}
	}()
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
