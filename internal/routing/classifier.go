// Package routing classifies items into categories and maps categories to destinations.
package routing

import (
	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// ClassRule assigns Category when an item carries any of AnyTag.
type ClassRule struct {
	Category string
	AnyTag   []string
}

// Classifier is a pure tag-rule classifier. First matching rule wins.
type Classifier struct {
	Rules   []ClassRule
	Default string
}

var _ ports.Classifier = Classifier{}

// CardClassifier separates Universes Beyond cards from everything else.
func CardClassifier() Classifier {
	return Classifier{
		Rules: []ClassRule{{
			Category: domain.CategoryUniversesBeyond,
			AnyTag:   []string{"universesbeyond", "set_type:universes_beyond"},
		}},
		Default: domain.CategoryRegular,
	}
}

// Classify returns the category for item.
func (c Classifier) Classify(item domain.Item) string {
	for _, rule := range c.Rules {
		for _, want := range rule.AnyTag {
			for _, tag := range item.Tags {
				if tag == want {
					return rule.Category
				}
			}
		}
	}
	return c.Default
}
