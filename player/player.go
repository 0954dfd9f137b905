package player

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTech is the tech used for local playback.
const DefaultTech = "Html5"

// DefaultInactivityTimeout matches the usual auto-hide delay of player controls.
const DefaultInactivityTimeout = 2 * time.Second

// ErrNoSource is returned when the player is asked to play without sources.
var ErrNoSource = errors.New("player: no source")

// ErrNoVolume is returned when the active tech has no volume control.
var ErrNoVolume = errors.New("player: tech has no volume control")

// Options configure a Player.
type Options struct {
	Sources           []Source
	Poster            string
	TextTracks        []TextTrack
	InactivityTimeout time.Duration
	Origin            string
}

type listener struct {
	fn   func()
	once bool
}

// Player is a headless media player. It keeps the source list, the active
// tech, the control bar and the event listeners of a real player without
// rendering anything itself.
type Player struct {
	mu                sync.Mutex
	sources           []Source
	current           Source
	poster            string
	textTracks        []TextTrack
	origin            string
	inactivityTimeout time.Duration
	userActive        bool
	lastErr           *MediaError

	techs    map[string]TechFactory
	tech     Tech
	techName string

	listeners  map[string][]listener
	controlBar *controlBar

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (p *Player) Log() *zerolog.Logger {
	if p.LogOutput != nil {
		p.initLogOnce.Do(func() {
			p.Logger = zerolog.New(p.LogOutput).With().Timestamp().Str("Component", "player").Logger()
		})
	}
	return &p.Logger
}

// New creates a Player with the local tech registered and the default
// control bar in place. Nothing is loaded until Load or SetSources.
func New(opts Options) *Player {
	timeout := opts.InactivityTimeout
	if timeout == 0 {
		timeout = DefaultInactivityTimeout
	}

	p := &Player{
		sources:           slices.Clone(opts.Sources),
		poster:            opts.Poster,
		textTracks:        slices.Clone(opts.TextTracks),
		origin:            opts.Origin,
		inactivityTimeout: timeout,
		techs:             make(map[string]TechFactory),
		listeners:         make(map[string][]listener),
		Logger:            zerolog.Nop(),
	}
	p.controlBar = newControlBar(p)
	p.RegisterTech(DefaultTech, func(o TechOptions) (Tech, error) {
		return newLocalTech(o.Source, time.Now), nil
	})

	return p
}

// RegisterTech makes a tech available to LoadTech under name.
func (p *Player) RegisterTech(name string, factory TechFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.techs[name] = factory
}

// Load loads the sources given at construction time.
func (p *Player) Load() error {
	return p.SetSources(p.Sources())
}

// SetSources replaces the source list and reloads the first source on the
// local tech. The "loadeddata" event fires once the tech is ready.
func (p *Player) SetSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSource
	}

	p.mu.Lock()
	p.sources = slices.Clone(sources)
	p.current = sources[0]
	p.mu.Unlock()

	if err := p.LoadTech(DefaultTech, TechOptions{Type: "local", Source: sources[0]}); err != nil {
		return fmt.Errorf("set sources: %w", err)
	}

	p.Log().Debug().Str("Method", "SetSources").Str("Src", sources[0].Src).Msg("source loaded")
	p.Trigger(EventLoadedData)
	return nil
}

// Sources returns a copy of the source list.
func (p *Player) Sources() []Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sources)
}

// CurrentSource is the URL of the source being played.
func (p *Player) CurrentSource() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Src
}

// CurrentType is the MIME type of the source being played.
func (p *Player) CurrentType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Type
}

// LoadTech disposes the active tech and switches to the named one.
func (p *Player) LoadTech(name string, opts TechOptions) error {
	p.mu.Lock()
	factory, ok := p.techs[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("load tech: unknown tech %q", name)
	}

	tech, err := factory(opts)
	if err != nil {
		return fmt.Errorf("load tech %s: %w", name, err)
	}

	p.mu.Lock()
	old := p.tech
	p.tech = tech
	p.techName = name
	p.mu.Unlock()

	if old != nil {
		old.Dispose()
	}

	p.Log().Debug().Str("Method", "LoadTech").Str("Tech", name).Msg("tech loaded")
	p.Trigger(EventTechChange)
	return nil
}

// TechName returns the name of the active tech.
func (p *Player) TechName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.techName
}

func (p *Player) activeTech() Tech {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tech
}

func (p *Player) volumeTech() (VolumeTech, error) {
	vt, ok := p.activeTech().(VolumeTech)
	if !ok {
		return nil, ErrNoVolume
	}
	return vt, nil
}

// Volume reports the active tech's volume, or ok false when it has none.
func (p *Player) Volume() (level float64, muted bool, ok bool) {
	vt, err := p.volumeTech()
	if err != nil {
		return 0, false, false
	}
	level, muted = vt.Volume()
	return level, muted, true
}

// SetVolume sets the active tech's volume.
func (p *Player) SetVolume(level float64) error {
	vt, err := p.volumeTech()
	if err != nil {
		return err
	}
	if err := vt.SetVolume(level); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// SetMuted mutes or unmutes the active tech.
func (p *Player) SetMuted(muted bool) error {
	vt, err := p.volumeTech()
	if err != nil {
		return err
	}
	if err := vt.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}
	return nil
}

// CurrentTime returns the active tech's position in seconds.
func (p *Player) CurrentTime() float64 {
	t := p.activeTech()
	if t == nil {
		return 0
	}
	return t.CurrentTime()
}

// SetCurrentTime seeks the active tech and fires "seeked".
func (p *Player) SetCurrentTime(seconds float64) error {
	t := p.activeTech()
	if t == nil {
		return ErrNoSource
	}
	if err := t.SetCurrentTime(seconds); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	p.Trigger(EventSeeked)
	return nil
}

// Paused reports whether the active tech is paused. A player without a tech
// counts as paused.
func (p *Player) Paused() bool {
	t := p.activeTech()
	if t == nil {
		return true
	}
	return t.Paused()
}

// Play starts playback on the active tech.
func (p *Player) Play() error {
	t := p.activeTech()
	if t == nil {
		return ErrNoSource
	}
	if err := t.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	p.Trigger(EventPlay)
	return nil
}

// Pause pauses the active tech.
func (p *Player) Pause() error {
	t := p.activeTech()
	if t == nil {
		return ErrNoSource
	}
	if err := t.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	p.Trigger(EventPause)
	return nil
}

func (p *Player) Poster() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poster
}

func (p *Player) TextTracks() []TextTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.textTracks)
}

func (p *Player) Origin() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.origin
}

func (p *Player) InactivityTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inactivityTimeout
}

func (p *Player) SetInactivityTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inactivityTimeout = d
}

// UserActive forces the controls into the active (non idle) state.
func (p *Player) UserActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userActive = active
}

// IsUserActive reports the last value passed to UserActive.
func (p *Player) IsUserActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userActive
}

// Error records a player-level error and fires "error".
func (p *Player) Error(err MediaError) {
	p.mu.Lock()
	p.lastErr = &err
	p.mu.Unlock()

	p.Log().Error().Str("Code", err.Code).Str("Message", err.Message).Msg("player error")
	p.Trigger(EventError)
}

// LastError returns the last error recorded with Error, or nil.
func (p *Player) LastError() *MediaError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// On registers fn for every occurrence of event.
func (p *Player) On(event string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[event] = append(p.listeners[event], listener{fn: fn})
}

// One registers fn for the next occurrence of event only.
func (p *Player) One(event string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[event] = append(p.listeners[event], listener{fn: fn, once: true})
}

// Trigger calls the listeners of event in registration order.
func (p *Player) Trigger(event string) {
	p.mu.Lock()
	ls := p.listeners[event]
	kept := ls[:0:0]
	for _, l := range ls {
		if !l.once {
			kept = append(kept, l)
		}
	}
	p.listeners[event] = kept
	p.mu.Unlock()

	for _, l := range ls {
		l.fn()
	}
}

func (p *Player) ControlBar() ControlBar {
	return p.controlBar
}

var _ Host = (*Player)(nil)
