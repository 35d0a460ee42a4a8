package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/scryfall"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// Embed colors.
const (
	ColorUniversesBeyond = 0x6A0DAD
	ColorRegular         = 0x2B6CB0
)

const (
	fieldLimit  = 1024
	fieldPrefix = 1000
)

// CardRenderer turns card items into embeds and anything else into a link message.
type CardRenderer struct{}

var _ ports.Renderer = CardRenderer{}

// Render builds the message for item.
func (CardRenderer) Render(item domain.Item) domain.Message {
	switch p := item.Payload.(type) {
	case *scryfall.Card:
		return domain.Message{Embeds: []domain.Embed{cardEmbed(p, item.Category)}}
	case string:
		return domain.Message{Content: p}
	default:
		return domain.Message{Content: item.Link}
	}
}

func cardEmbed(card *scryfall.Card, category string) domain.Embed {
	title := card.Name
	if title == "" {
		title = "Unknown"
	}

	e := domain.Embed{
		Title:       title,
		URL:         card.ScryfallURI,
		Description: card.TypeLine,
		Color:       ColorRegular,
		ImageURL:    card.ImageURL(),
	}
	if category == domain.CategoryUniversesBeyond {
		e.Color = ColorUniversesBeyond
	}

	if card.OracleText != "" {
		e.Fields = append(e.Fields, domain.EmbedField{Name: "Text", Value: truncate(card.OracleText)})
	}

	var dates []string
	if card.ReleasedAt != "" {
		dates = append(dates, "Release: "+card.ReleasedAt)
	}
	if pv := card.PreviewedAt(); pv != "" {
		dates = append(dates, "Preview: "+pv)
	}
	if len(dates) > 0 {
		e.Fields = append(e.Fields, domain.EmbedField{Name: "Dates", Value: strings.Join(dates, " | "), Inline: true})
	}

	if card.SetName != "" || card.CollectorNumber != "" {
		e.Footer = strings.TrimSpace(fmt.Sprintf("%s #%s", card.SetName, card.CollectorNumber))
	}
	return e
}

// truncate keeps field values under Discord's limit, counting characters rather than bytes.
func truncate(s string) string {
	if utf8.RuneCountInString(s) < fieldLimit {
		return s
	}
	return string([]rune(s)[:fieldPrefix]) + "…"
}
