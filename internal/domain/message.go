package domain

// Message is a rendered payload ready for a notifier: plain content, embeds, or both.
type Message struct {
	Content string
	Embeds  []Embed
}

// Embed is a structured rich card.
type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	ImageURL    string
	Footer      string
	Fields      []EmbedField
}

// EmbedField is a named block inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}
