package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"go2tv.app/castbutton/castbutton"
	"go2tv.app/castbutton/player"
	"golang.org/x/time/rate"
)

const (
	seekStep   = 10.0
	volumeStep = 0.05
)

// PlayerScreen is the interactive terminal of the player: a title, the
// control bar and the last status message.
type PlayerScreen struct {
	Current     tcell.Screen
	Player      *player.Player
	Plugin      *castbutton.Plugin
	exitCTXfunc context.CancelFunc
	ctx         context.Context
	clicks      *rate.Limiter
	mediaTitle  string
	lastAction  string
	mu          sync.RWMutex
}

// InitPlayerScreen creates a new interactive screen for p.
func InitPlayerScreen(ctx context.Context, ctxCancel context.CancelFunc, p *player.Player, plugin *castbutton.Plugin) (*PlayerScreen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("interactive: %w", err)
	}

	return newPlayerScreen(ctx, ctxCancel, s, p, plugin), nil
}

func newPlayerScreen(ctx context.Context, ctxCancel context.CancelFunc, s tcell.Screen, p *player.Player, plugin *castbutton.Plugin) *PlayerScreen {
	return &PlayerScreen{
		Current:     s,
		Player:      p,
		Plugin:      plugin,
		ctx:         ctx,
		exitCTXfunc: ctxCancel,
		clicks:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (p *PlayerScreen) emitStr(x, y int, style tcell.Style, str string) {
	s := p.Current
	for _, c := range str {
		var comb []rune
		w := runewidth.RuneWidth(c)
		if w == 0 {
			comb = []rune{c}
			c = ' '
			w = 1
		}
		s.SetContent(x, y, c, comb, style)
		x += w
	}
}

func (p *PlayerScreen) emitCentered(y int, style tcell.Style, str string) {
	w, _ := p.Current.Size()
	p.emitStr(w/2-runewidth.StringWidth(str)/2, y, style, str)
}

// controlBarLine renders the visible controls as "[Play] [0:00] ...".
func controlBarLine(controls []player.Control) string {
	var parts []string
	for _, c := range controls {
		if !c.Visible() {
			continue
		}
		label := c.Render()
		if label == "" {
			continue
		}
		parts = append(parts, "["+label+"]")
	}
	return strings.Join(parts, " ")
}

// EmitMsg displays status to the interactive terminal.
func (p *PlayerScreen) EmitMsg(inputtext string) {
	p.updateLastAction(inputtext)
	s := p.Current

	p.mu.RLock()
	mediaTitle := p.mediaTitle
	p.mu.RUnlock()

	_, h := s.Size()
	boldStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Bold(true)
	blinkStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Blink(true)

	s.Clear()

	p.emitStr(1, 1, tcell.StyleDefault, "Press ESC to stop and exit.")
	p.emitCentered(h/2-4, tcell.StyleDefault, "Title: "+mediaTitle)

	switch inputtext {
	case "Waiting for status...", "Connecting...":
		p.emitCentered(h/2-2, blinkStyle, inputtext)
	default:
		p.emitCentered(h/2-2, boldStyle, inputtext)
	}

	p.emitCentered(h/2, boldStyle, controlBarLine(p.Player.ControlBar().Children()))

	if p.Plugin != nil && p.Plugin.Button().Visible() {
		p.emitCentered(h/2+2, tcell.StyleDefault, `"c" (Cast/Stop casting)`)
	}
	p.emitCentered(h/2+4, tcell.StyleDefault, `"p" (Play/Pause)`)
	p.emitCentered(h/2+6, tcell.StyleDefault, `"Left" "Right" (Seek -/+10s)`)
	if level, muted, ok := p.Player.Volume(); ok {
		vol := fmt.Sprintf("Volume %d%%", int(level*100+0.5))
		if muted {
			vol += " (muted)"
		}
		p.emitCentered(h/2+8, tcell.StyleDefault, vol+`  "PgUp" "PgDn" "m" (Volume/Mute)`)
	}
	s.Show()
}

// InterInit starts the interactive terminal and runs until Fini.
func (p *PlayerScreen) InterInit(mediaTitle string, c chan error) {
	p.mu.Lock()
	p.mediaTitle = mediaTitle
	p.mu.Unlock()

	s := p.Current
	if err := s.Init(); err != nil {
		c <- fmt.Errorf("interactive: %w", err)
		return
	}

	defStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite)
	s.SetStyle(defStyle)

	p.EmitMsg("Waiting for status...")

	if p.Plugin != nil {
		p.Plugin.Controller().OnChange(func() {
			p.EmitMsg(p.statusLine())
		})
	}

	statusTicker := time.NewTicker(time.Second)
	go func() {
		defer statusTicker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-statusTicker.C:
				p.EmitMsg(p.statusLine())
			}
		}
	}()

	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			s.Sync()
			p.EmitMsg(p.getLastAction())
		case *tcell.EventKey:
			p.HandleKeyEvent(ev)
		}
	}
}

// statusLine describes what is playing where.
func (p *PlayerScreen) statusLine() string {
	state := "Playing"
	if p.Player.Paused() {
		state = "Paused"
	}

	if p.Plugin == nil {
		return state
	}

	c := p.Plugin.Controller()
	switch c.ButtonState() {
	case castbutton.ButtonCasting:
		if s := c.Session(); s != nil {
			return state + " on " + s.ReceiverName()
		}
	case castbutton.ButtonError:
		return "Cast error, press c to retry"
	}

	switch c.State() {
	case castbutton.StateRequesting:
		return "Connecting..."
	case castbutton.StateStopping:
		return "Stopping cast..."
	}
	return state
}

// HandleKeyEvent handles key press events.
func (p *PlayerScreen) HandleKeyEvent(ev *tcell.EventKey) {
	p.handleKey(ev.Key(), ev.Rune())
}

func (p *PlayerScreen) handleKey(key tcell.Key, r rune) {
	switch key {
	case tcell.KeyEscape:
		if p.Plugin != nil && p.Plugin.Controller().Casting() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = p.Plugin.Controller().Stop(ctx)
			cancel()
		}
		p.Fini()
		return
	case tcell.KeyLeft, tcell.KeyRight:
		delta := seekStep
		if key == tcell.KeyLeft {
			delta = -delta
		}
		_ = p.Player.SetCurrentTime(max(0, p.Player.CurrentTime()+delta))
		p.EmitMsg(p.statusLine())
		return
	case tcell.KeyPgUp, tcell.KeyPgDn:
		delta := volumeStep
		if key == tcell.KeyPgDn {
			delta = -delta
		}
		level, _, _ := p.Player.Volume()
		p.volumeResult(p.Player.SetVolume(level + delta))
		return
	}

	switch r {
	case 'p':
		p.click(player.PlayToggleName)
	case 'm':
		_, muted, _ := p.Player.Volume()
		p.volumeResult(p.Player.SetMuted(!muted))
	case 'c':
		// Launch blocks on the receiver picker and the network.
		if !p.clicks.Allow() {
			return
		}
		go p.click(castbutton.ButtonName)
	}
}

func (p *PlayerScreen) volumeResult(err error) {
	switch {
	case errors.Is(err, player.ErrNoVolume):
		p.EmitMsg("Volume is only controllable while casting")
	case err != nil:
		p.EmitMsg(err.Error())
	default:
		p.EmitMsg(p.statusLine())
	}
}

func (p *PlayerScreen) click(name string) {
	c := p.Player.ControlBar().Child(name)
	if c == nil || !c.Visible() {
		return
	}

	if err := c.HandleClick(p.ctx); err != nil {
		p.EmitMsg(err.Error())
		return
	}
	p.EmitMsg(p.statusLine())
}

// Fini closes the screen and exits.
func (p *PlayerScreen) Fini() {
	p.Current.Fini()
	p.exitCTXfunc()
}

func (p *PlayerScreen) getLastAction() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastAction
}

func (p *PlayerScreen) updateLastAction(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastAction = s
}
