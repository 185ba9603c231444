// Package typing implements the hero headline typing animation as a pure
// state machine. Timing is returned to the caller, never slept on.
package typing

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a Cycler is built from unusable phrases.
var ErrInvalidConfig = errors.New("typing: invalid config")

// Mode is the direction the cursor is currently moving.
type Mode int

const (
	Typing Mode = iota
	Deleting
)

func (m Mode) String() string {
	switch m {
	case Typing:
		return "typing"
	case Deleting:
		return "deleting"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Delays holds the pause returned after each kind of tick.
type Delays struct {
	Type      time.Duration // after adding a character
	Delete    time.Duration // after removing a character
	EndPause  time.Duration // after a phrase is fully shown
	NextPause time.Duration // after a phrase is fully erased
}

// DefaultDelays returns the stock headline animation timings.
func DefaultDelays() Delays {
	return Delays{
		Type:      100 * time.Millisecond,
		Delete:    50 * time.Millisecond,
		EndPause:  2000 * time.Millisecond,
		NextPause: 500 * time.Millisecond,
	}
}

// Option customizes a Cycler.
type Option func(*Cycler)

// WithDelays overrides the default tick delays.
func WithDelays(d Delays) Option {
	return func(c *Cycler) { c.delays = d }
}

// Cycler types and deletes a fixed list of phrases forever.
// It is not safe for concurrent use; one goroutine should own it.
type Cycler struct {
	phrases [][]rune
	index   int
	cursor  int
	mode    Mode
	delays  Delays
}

// New builds a Cycler positioned before the first character of the first
// phrase. Phrases are copied.
func New(phrases []string, opts ...Option) (*Cycler, error) {
	if len(phrases) == 0 {
		return nil, fmt.Errorf("%w: no phrases", ErrInvalidConfig)
	}
	c := &Cycler{
		phrases: make([][]rune, len(phrases)),
		delays:  DefaultDelays(),
	}
	for i, p := range phrases {
		if p == "" {
			return nil, fmt.Errorf("%w: phrase %d is empty", ErrInvalidConfig, i)
		}
		c.phrases[i] = []rune(p)
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.delays.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (d Delays) validate() error {
	if d.Type < 0 || d.Delete < 0 || d.EndPause < 0 || d.NextPause < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
	}
	return nil
}

// Tick advances the animation by one character and returns the text to
// display together with how long the caller should wait before the next
// Tick.
func (c *Cycler) Tick() (string, time.Duration) {
	phrase := c.phrases[c.index]

	if c.mode == Typing {
		c.cursor++
		display := string(phrase[:c.cursor])
		if c.cursor == len(phrase) {
			c.mode = Deleting
			return display, c.delays.EndPause
		}
		return display, c.delays.Type
	}

	c.cursor--
	display := string(phrase[:c.cursor])
	if c.cursor == 0 {
		c.mode = Typing
		c.index = (c.index + 1) % len(c.phrases)
		return display, c.delays.NextPause
	}
	return display, c.delays.Delete
}

// Index reports which phrase is being typed or deleted.
func (c *Cycler) Index() int { return c.index }

// Cursor reports how many characters of the current phrase are shown.
func (c *Cycler) Cursor() int { return c.cursor }

// Mode reports the current direction.
func (c *Cycler) Mode() Mode { return c.mode }

// Phrase returns the phrase at the current index.
func (c *Cycler) Phrase() string { return string(c.phrases[c.index]) }

// Len returns the number of phrases in the rotation.
func (c *Cycler) Len() int { return len(c.phrases) }
