package slot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownSlot = errors.New("slot is not in the catalog")

// defaultLabels is the daily schedule: a morning block, a lunch gap, then an afternoon block.
var defaultLabels = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00", "12:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00",
}

// Catalog is the fixed ordered set of bookable time-of-day labels.
// It is stateless and safe for concurrent use.
type Catalog struct {
	labels []string
	index  map[string]int
}

func NewCatalog() *Catalog {
	return newCatalog(defaultLabels)
}

func newCatalog(labels []string) *Catalog {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return &Catalog{labels: labels, index: idx}
}

// Slots returns the ordered labels for a date. Every date gets the same sequence.
func (c *Catalog) Slots(date time.Time) []string {
	_ = date
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

func (c *Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

// Normalize maps "HH:MM" or "hh:MM AM/PM" to the catalog label and rejects
// anything that is not part of the schedule.
func (c *Catalog) Normalize(label string) (string, error) {
	raw := strings.TrimSpace(label)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownSlot)
	}

	candidate := raw
	for _, layout := range []string{"15:04", "03:04 PM", "3:04 PM", "03:04PM", "3:04PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(raw)); err == nil {
			candidate = t.Format("15:04")
			break
		}
	}

	if !c.Contains(candidate) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSlot, label)
	}
	return candidate, nil
}

// Available returns the catalog labels for date minus those in taken, in catalog order.
func (c *Catalog) Available(date time.Time, taken []string) []string {
	held := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		held[t] = struct{}{}
	}

	out := make([]string, 0, len(c.labels))
	for _, l := range c.Slots(date) {
		if _, ok := held[l]; ok {
			continue
		}
		out = append(out, l)
	}
	return out
}
