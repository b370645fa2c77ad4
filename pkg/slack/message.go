package slack

// Message is one webhook payload. It is built fresh for every log event
// and never mutated after it has been handed to the client.
type Message struct {
	Channel   string `json:"channel,omitempty"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`

	Text   string `json:"text"`
	Mrkdwn bool   `json:"mrkdwn"`

	LinkNames bool   `json:"link_names,omitempty"`
	Parse     string `json:"parse,omitempty"`
	ThreadTS  string `json:"thread_ts,omitempty"`

	ReplaceOriginal bool   `json:"replace_original,omitempty"`
	DeleteOriginal  bool   `json:"delete_original,omitempty"`
	ResponseType    string `json:"response_type,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
	Blocks      []Block      `json:"blocks,omitempty"`
}

// WithChannel returns a copy of the message addressed to channel.
func (m Message) WithChannel(channel string) Message {
	m.Channel = channel
	return m
}

// Attachment is the legacy secondary-content block. Color takes
// "good", "warning", "danger" or a hex value.
type Attachment struct {
	Fallback string            `json:"fallback,omitempty"`
	Color    string            `json:"color,omitempty"`
	Pretext  string            `json:"pretext,omitempty"`
	Title    string            `json:"title,omitempty"`
	Text     string            `json:"text,omitempty"`
	Fields   []AttachmentField `json:"fields,omitempty"`
	Footer   string            `json:"footer,omitempty"`
	Ts       int64             `json:"ts,omitempty"`
	MrkdwnIn []string          `json:"mrkdwn_in,omitempty"`
}

type AttachmentField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Block is a Block Kit layout block. Only the shapes this sink emits
// are modeled; callers supplying their own block formatter can fill
// any type/text combination the API accepts.
type Block struct {
	Type   string       `json:"type"`
	Text   *TextObject  `json:"text,omitempty"`
	Fields []TextObject `json:"fields,omitempty"`
}

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SectionBlock builds a section block with mrkdwn text.
func SectionBlock(text string) Block {
	return Block{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: text}}
}

// DividerBlock builds a divider block.
func DividerBlock() Block {
	return Block{Type: "divider"}
}
