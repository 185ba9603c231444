// Package sections decides which labeled page region is active for a given
// vertical scroll offset, for highlighting the matching navigation link.
package sections

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a section layout cannot be tracked.
var ErrInvalidConfig = errors.New("sections: invalid config")

const (
	// DefaultTopBias is how far before a section's top edge it becomes active.
	DefaultTopBias = 100.0
	// DefaultTopThreshold is the scroll offset below which an unmatched
	// evaluation falls back to the home section.
	DefaultTopThreshold = 100.0
	// DefaultHomeID names the top-of-page section.
	DefaultHomeID = "home"
)

// Section is a vertically bounded region of the page, in the same
// coordinate space as the scroll offset.
type Section struct {
	ID     string  `json:"id" yaml:"id"`
	Top    float64 `json:"top" yaml:"top"`
	Height float64 `json:"height" yaml:"height"`
}

// Tracker remembers the last active section between evaluations so an
// unmatched scroll position does not clear the highlight.
type Tracker struct {
	sections     []Section
	homeID       string
	topThreshold float64
	active       string
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithHomeID sets the id reported near the top of the page.
func WithHomeID(id string) Option {
	return func(t *Tracker) { t.homeID = id }
}

// WithTopThreshold sets the top-of-page fallback threshold.
func WithTopThreshold(v float64) Option {
	return func(t *Tracker) { t.topThreshold = v }
}

// WithActive seeds the previous result, e.g. one held by a client.
func WithActive(id string) Option {
	return func(t *Tracker) { t.active = id }
}

// NewTracker validates the layout and returns a Tracker over a copy of it.
func NewTracker(sections []Section, opts ...Option) (*Tracker, error) {
	if err := Validate(sections); err != nil {
		return nil, err
	}
	t := &Tracker{
		sections:     append([]Section(nil), sections...),
		homeID:       DefaultHomeID,
		topThreshold: DefaultTopThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Validate reports duplicate or empty ids and negative or non-finite
// geometry.
func Validate(sections []Section) error {
	seen := make(map[string]struct{}, len(sections))
	for i, s := range sections {
		if s.ID == "" {
			return fmt.Errorf("%w: section %d has no id", ErrInvalidConfig, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate section id %q", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = struct{}{}
		if math.IsNaN(s.Top) || math.IsInf(s.Top, 0) {
			return fmt.Errorf("%w: section %q has non-finite top", ErrInvalidConfig, s.ID)
		}
		if math.IsNaN(s.Height) || math.IsInf(s.Height, 0) || s.Height < 0 {
			return fmt.Errorf("%w: section %q has invalid height %v", ErrInvalidConfig, s.ID, s.Height)
		}
	}
	return nil
}

// Match scans sections in order and returns the last one containing
// scrollOffset once each top is shifted up by topBias. The range is
// inclusive at the top and exclusive at the bottom.
func Match(sections []Section, scrollOffset, topBias float64) (string, bool) {
	var (
		id    string
		found bool
	)
	for _, s := range sections {
		top := s.Top - topBias
		if scrollOffset >= top && scrollOffset < top+s.Height {
			id, found = s.ID, true
		}
	}
	return id, found
}

// Evaluate returns the active section id for scrollOffset. Without a match
// it reports the home id near the top of the page and otherwise keeps the
// previous result, which may be empty.
func (t *Tracker) Evaluate(scrollOffset, topBias float64) string {
	if id, ok := Match(t.sections, scrollOffset, topBias); ok {
		t.active = id
		return id
	}
	if scrollOffset < t.topThreshold {
		t.active = t.homeID
	}
	return t.active
}

// Active returns the last evaluated result.
func (t *Tracker) Active() string { return t.active }

// Sections returns a copy of the tracked layout.
func (t *Tracker) Sections() []Section {
	return append([]Section(nil), t.sections...)
}
