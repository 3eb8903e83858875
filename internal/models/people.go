package models

import (
	"errors"
	"fmt"
	"strings"
)

// Person is one member of the fixed group sharing expenses.
type Person struct {
	ID    string
	Label string
	Color string
}

// Roster is the closed, ordered set of people that can pay or settle expenses.
type Roster []Person

// DefaultRoster is the group used when no PEOPLE override is configured.
var DefaultRoster = Roster{
	{ID: "Nam", Label: "Nam", Color: "#4F86F7"},
	{ID: "Tân", Label: "Tân", Color: "#F78F4F"},
	{ID: "Tuyển", Label: "Tuyển", Color: "#4FBF7A"},
	{ID: "Định", Label: "Định", Color: "#B45FD6"},
}

// Contains reports whether id names a roster member.
func (r Roster) Contains(id string) bool {
	_, ok := r.Find(id)
	return ok
}

// Find returns the person with the given id.
func (r Roster) Find(id string) (Person, bool) {
	for _, p := range r {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// Label returns the display label for id, falling back to id itself.
func (r Roster) Label(id string) string {
	if p, ok := r.Find(id); ok {
		return p.Label
	}
	return id
}

// Labels maps ids to display labels.
func (r Roster) Labels(ids []string) []string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, r.Label(id))
	}
	return labels
}

// Normalize deduplicates ids and returns them in roster order.
// Ids that are not roster members are returned separately.
func (r Roster) Normalize(ids []string) (known, unknown []string) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if !r.Contains(id) {
			unknown = append(unknown, id)
		}
	}
	known = make([]string, 0, len(seen))
	for _, p := range r {
		if seen[p.ID] {
			known = append(known, p.ID)
		}
	}
	return known, unknown
}

// ParseRoster parses "id:label:#color" entries separated by commas.
// Label and color are optional; the label defaults to the id.
func ParseRoster(raw string) (Roster, error) {
	var roster Roster
	seen := make(map[string]bool)
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		p := Person{ID: strings.TrimSpace(parts[0])}
		if p.ID == "" {
			return nil, fmt.Errorf("invalid person entry %q: empty id", entry)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate person id %q", p.ID)
		}
		seen[p.ID] = true
		p.Label = p.ID
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			p.Label = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			p.Color = strings.TrimSpace(parts[2])
		}
		roster = append(roster, p)
	}
	if len(roster) == 0 {
		return nil, errors.New("roster must contain at least one person")
	}
	return roster, nil
}
