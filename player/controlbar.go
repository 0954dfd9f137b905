package player

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Names of the built-in controls.
const (
	PlayToggleName         = "PlayToggle"
	CurrentTimeDisplayName = "CurrentTimeDisplay"
	FullscreenToggleName   = "FullscreenToggle"
)

type controlBar struct {
	mu       sync.Mutex
	children []Control
}

func newControlBar(p *Player) *controlBar {
	cb := &controlBar{}
	for _, c := range []Control{
		&playToggle{p: p},
		&currentTimeDisplay{p: p},
		&fullscreenToggle{},
	} {
		cb.AddChildBefore(c, "")
	}
	return cb
}

func (cb *controlBar) Child(name string) Control {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for _, c := range cb.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (cb *controlBar) AddChildBefore(c Control, before string) Control {
	cb.mu.Lock()
	idx := slices.IndexFunc(cb.children, func(x Control) bool { return x.Name() == before })
	if idx < 0 {
		cb.children = append(cb.children, c)
	} else {
		cb.children = slices.Insert(cb.children, idx, c)
	}
	cb.mu.Unlock()

	c.Mount()
	return c
}

func (cb *controlBar) Children() []Control {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return slices.Clone(cb.children)
}

type playToggle struct {
	p *Player
}

func (c *playToggle) Name() string  { return PlayToggleName }
func (c *playToggle) Mount()        {}
func (c *playToggle) Visible() bool { return true }

func (c *playToggle) Render() string {
	if c.p.Paused() {
		return "Play"
	}
	return "Pause"
}

func (c *playToggle) HandleClick(ctx context.Context) error {
	if c.p.Paused() {
		return c.p.Play()
	}
	return c.p.Pause()
}

type currentTimeDisplay struct {
	p *Player
}

func (c *currentTimeDisplay) Name() string                          { return CurrentTimeDisplayName }
func (c *currentTimeDisplay) Mount()                                {}
func (c *currentTimeDisplay) Visible() bool                         { return true }
func (c *currentTimeDisplay) HandleClick(ctx context.Context) error { return nil }

func (c *currentTimeDisplay) Render() string {
	return FormatTime(c.p.CurrentTime())
}

type fullscreenToggle struct {
	mu         sync.Mutex
	fullscreen bool
}

func (c *fullscreenToggle) Name() string  { return FullscreenToggleName }
func (c *fullscreenToggle) Mount()        {}
func (c *fullscreenToggle) Visible() bool { return true }

func (c *fullscreenToggle) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fullscreen {
		return "Exit Fullscreen"
	}
	return "Fullscreen"
}

func (c *fullscreenToggle) HandleClick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fullscreen = !c.fullscreen
	return nil
}

// FormatTime renders seconds as m:ss or h:mm:ss.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
