// Package hud renders the short-lived notification shown when outlines are
// switched on or off.
package hud

import (
	"sync"
	"time"

	"github.com/zeusync/glowline/internal/core/color"
)

const (
	DefaultDuration = 3 * time.Second
	// FadeStart is the fraction of the duration after which the notice fades.
	FadeStart = 0.7
)

// Notice is what the host draws this frame.
type Notice struct {
	Text string
	// Alpha is in [0,1].
	Alpha float64
	// TextColor is white with Alpha applied.
	TextColor color.ARGB
	// Background is translucent black, at most half opaque.
	Background color.ARGB
}

type Toast struct {
	mu       sync.Mutex
	duration time.Duration
	now      func() time.Time

	text    string
	shownAt time.Time
}

type Option func(*Toast)

func WithDuration(d time.Duration) Option {
	return func(t *Toast) {
		if d > 0 {
			t.duration = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Toast) { t.now = now }
}

func NewToast(opts ...Option) *Toast {
	t := &Toast{duration: DefaultDuration, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show replaces the current notice and restarts its timer.
func (t *Toast) Show(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
	t.shownAt = t.now()
}

// Frame returns the notice to draw, or false when nothing is showing.
func (t *Toast) Frame() (Notice, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.text == "" {
		return Notice{}, false
	}
	elapsed := t.now().Sub(t.shownAt)
	if elapsed >= t.duration {
		t.text = ""
		return Notice{}, false
	}
	alpha := fade(float64(elapsed) / float64(t.duration))
	return Notice{
		Text:       t.text,
		Alpha:      alpha,
		TextColor:  color.ARGB(uint32(alpha*255)<<24 | 0xFFFFFF),
		Background: color.ARGB(uint32(alpha*128) << 24),
	}, true
}

// Active reports whether a notice is still within its display time.
func (t *Toast) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text != "" && t.now().Sub(t.shownAt) < t.duration
}

func fade(progress float64) float64 {
	if progress <= FadeStart {
		return 1
	}
	a := 1 - (progress-FadeStart)/(1-FadeStart)
	if a < 0 {
		return 0
	}
	return a
}

// OutlinesMessage is the text shown after the global toggle.
func OutlinesMessage(enabled bool) string {
	if enabled {
		return "All Outlines: ON"
	}
	return "All Outlines: OFF"
}
