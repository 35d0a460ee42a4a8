package discord

import "github.com/Urkchar/mtg-spoilers-bot/internal/domain"

// messagePayload is the body of POST /channels/{id}/messages.
type messagePayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// apiError is Discord's error body. RetryAfter is only set on 429.
type apiError struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

func toPayload(msg domain.Message) messagePayload {
	p := messagePayload{Content: msg.Content}
	for _, e := range msg.Embeds {
		out := embed{
			Title:       e.Title,
			Description: e.Description,
			URL:         e.URL,
			Color:       e.Color,
		}
		if e.ImageURL != "" {
			out.Image = &embedImage{URL: e.ImageURL}
		}
		if e.Footer != "" {
			out.Footer = &embedFooter{Text: e.Footer}
		}
		for _, f := range e.Fields {
			out.Fields = append(out.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		p.Embeds = append(p.Embeds, out)
	}
	return p
}
