package scryfall

import (
	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

// Card is the subset of a Scryfall card object the bot uses.
type Card struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	ScryfallURI     string            `json:"scryfall_uri"`
	TypeLine        string            `json:"type_line"`
	OracleText      string            `json:"oracle_text"`
	ReleasedAt      string            `json:"released_at"`
	SetName         string            `json:"set_name"`
	SetType         string            `json:"set_type"`
	CollectorNumber string            `json:"collector_number"`
	PromoTypes      []string          `json:"promo_types"`
	Preview         *Preview          `json:"preview"`
	ImageURIs       map[string]string `json:"image_uris"`
	CardFaces       []CardFace        `json:"card_faces"`
}

// Preview carries spoiler metadata.
type Preview struct {
	PreviewedAt string `json:"previewed_at"`
	Source      string `json:"source"`
	SourceURI   string `json:"source_uri"`
}

// CardFace is one face of a multi-faced card.
type CardFace struct {
	Name      string            `json:"name"`
	ImageURIs map[string]string `json:"image_uris"`
}

// PreviewedAt returns the preview date or "".
func (c Card) PreviewedAt() string {
	if c.Preview == nil {
		return ""
	}
	return c.Preview.PreviewedAt
}

// ImageURL picks normal, then large, then png, falling back to the first face.
func (c Card) ImageURL() string {
	if url := pickImage(c.ImageURIs); url != "" {
		return url
	}
	if len(c.CardFaces) > 0 {
		return pickImage(c.CardFaces[0].ImageURIs)
	}
	return ""
}

func pickImage(uris map[string]string) string {
	for _, size := range []string{"normal", "large", "png"} {
		if url := uris[size]; url != "" {
			return url
		}
	}
	return ""
}

// SetTypeTag prefixes the set type so it can share the tag space with promo types.
const SetTypeTag = "set_type:"

// ToItem normalizes a card into a candidate item.
func (c Card) ToItem() domain.Item {
	tags := make([]string, 0, len(c.PromoTypes)+1)
	tags = append(tags, c.PromoTypes...)
	if c.SetType != "" {
		tags = append(tags, SetTypeTag+c.SetType)
	}

	card := c
	return domain.Item{
		ID:          c.ID,
		Link:        c.ScryfallURI,
		Title:       c.Name,
		ReleasedAt:  c.ReleasedAt,
		PreviewedAt: c.PreviewedAt(),
		Tags:        tags,
		Payload:     &card,
	}
}
