package routing

import (
	"strings"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// Wildcard matches every category.
const Wildcard = "*"

// Rule maps a category or link prefix to a destination.
// An empty Destination on a non-required rule means "skip this partition".
type Rule struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	Destination string `yaml:"destination"`
	Required    bool   `yaml:"required,omitempty"`
}

func (r Rule) matches(item domain.Item) bool {
	if r.Category == Wildcard {
		return true
	}
	if r.Category != "" && r.Category == item.Category {
		return true
	}
	return r.Prefix != "" && strings.HasPrefix(item.Link, r.Prefix)
}

// Table is an ordered routing table.
type Table struct {
	Rules []Rule `yaml:"routes"`
}

var _ ports.Router = Table{}

// Route returns the first matching partition; false means drop the item.
func (t Table) Route(item domain.Item) (ports.Route, bool) {
	for _, rule := range t.Rules {
		if rule.matches(item) {
			return ports.Route{Name: rule.partition(), Destination: rule.Destination}, true
		}
	}
	return ports.Route{}, false
}

// Partitions lists every partition in table order.
func (t Table) Partitions() []ports.Route {
	out := make([]ports.Route, 0, len(t.Rules))
	for _, rule := range t.Rules {
		out = append(out, ports.Route{Name: rule.partition(), Destination: rule.Destination})
	}
	return out
}

func (r Rule) partition() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Category != "":
		return r.Category
	default:
		return r.Prefix
	}
}

// Validate rejects required rules without a destination.
func (t Table) Validate() error {
	for _, rule := range t.Rules {
		if rule.Required && rule.Destination == "" {
			return &domain.ConfigurationError{
				Field:  "routes." + rule.partition(),
				Reason: "required destination is not configured",
			}
		}
	}
	return nil
}

// Single routes everything to one destination.
func Single(name, destination string) Table {
	return Table{Rules: []Rule{{Name: name, Category: Wildcard, Destination: destination, Required: true}}}
}

// Partitioned routes one special category to its own destination and everything else to the default.
func Partitioned(special, specialDestination, defaultName, defaultDestination string) Table {
	return Table{Rules: []Rule{
		{Name: special, Category: special, Destination: specialDestination},
		{Name: defaultName, Category: Wildcard, Destination: defaultDestination, Required: true},
	}}
}
