package castbutton

import (
	"context"

	"go2tv.app/castbutton/player"
)

// ButtonName is the control bar name of the cast button.
const ButtonName = "ChromeCastButton"

// ButtonState is what the cast button shows.
type ButtonState int

const (
	ButtonHidden ButtonState = iota
	ButtonIdle
	ButtonCasting
	ButtonError
)

func (b ButtonState) String() string {
	switch b {
	case ButtonIdle:
		return "idle"
	case ButtonCasting:
		return "casting"
	case ButtonError:
		return "error"
	default:
		return "hidden"
	}
}

// ButtonState derives the visible state from the control markers. The error
// marker wins over connected.
func (c *Controller) ButtonState() ButtonState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.shown:
		return ButtonHidden
	case c.errored:
		return ButtonError
	case c.connected:
		return ButtonCasting
	default:
		return ButtonIdle
	}
}

// Classes lists the style classes of the button, the way a DOM control
// would carry them.
func (c *Controller) Classes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	classes := []string{"vjs-chromecast-button", "vjs-control", "vjs-button"}
	if !c.shown {
		classes = append(classes, "vjs-hidden")
	}
	if c.connected {
		classes = append(classes, "connected")
	}
	if c.errored {
		classes = append(classes, "error")
	}
	return classes
}

func (c *Controller) hide() {
	c.mu.Lock()
	c.shown = false
	c.mu.Unlock()
	c.changed()
}

// Button is the control bar component driving a Controller.
type Button struct {
	c *Controller
}

// NewButton returns the button for c.
func NewButton(c *Controller) *Button {
	return &Button{c: c}
}

func (b *Button) Name() string {
	return ButtonName
}

// Mount hides the button until a receiver shows up.
func (b *Button) Mount() {
	b.c.hide()
}

// ControlText is the accessible label.
func (b *Button) ControlText() string {
	return "Chromecast"
}

func (b *Button) Render() string {
	switch b.c.ButtonState() {
	case ButtonCasting:
		if s := b.c.Session(); s != nil && s.ReceiverName() != "" {
			return "Casting to " + s.ReceiverName()
		}
		return "Casting"
	case ButtonError:
		return b.ControlText() + " (error)"
	case ButtonIdle:
		return b.ControlText()
	default:
		return ""
	}
}

func (b *Button) Visible() bool {
	return b.c.ButtonState() != ButtonHidden
}

// HandleClick stops casting when connected and launches a session otherwise.
func (b *Button) HandleClick(ctx context.Context) error {
	return b.c.Toggle(ctx)
}

var _ player.Control = (*Button)(nil)
