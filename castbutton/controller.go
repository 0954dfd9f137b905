// Package castbutton is the cast control of a media player: the session
// state machine, the control bar button and the plugin glue that probes for
// the cast SDK.
package castbutton

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/mediainfo"
	"go2tv.app/castbutton/player"
)

// DefaultInactivityTimeout is what the stop path restores if no handoff ever
// saved the player's own value.
const DefaultInactivityTimeout = 2 * time.Second

var (
	ErrNotInitialized = errors.New("castbutton: session not initialized")
	ErrBusy           = errors.New("castbutton: request in flight")
	ErrNoSession      = errors.New("castbutton: no active session")
)

// Snapshot is the local playback state restored when casting ends.
type Snapshot struct {
	CurrentTime       float64
	InactivityTimeout time.Duration
	Sources           []player.Source
	WasPlaying        bool
}

// Controller owns the casting session. Every field below mu is only changed
// through Controller methods.
type Controller struct {
	host player.Host
	sdk  castsdk.SDK
	opts Options

	mu             sync.Mutex
	state          State
	apiInitialized bool
	session        castsdk.Session
	media          castsdk.Media
	casting        bool
	snapshot       Snapshot
	lastRestore    Snapshot
	shown          bool
	connected      bool
	errored        bool
	onChange       []func()

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// NewController returns an uninitialized controller for host.
func NewController(host player.Host, sdk castsdk.SDK, opts Options) *Controller {
	return &Controller{
		host:     host,
		sdk:      sdk,
		opts:     opts.withDefaults(),
		snapshot: Snapshot{InactivityTimeout: DefaultInactivityTimeout},
		Logger:   zerolog.Nop(),
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *Controller) Log() *zerolog.Logger {
	if c.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.Logger = zerolog.New(c.LogOutput).With().Timestamp().Str("Component", "castbutton").Logger()
		})
	}
	return &c.Logger
}

// OnChange registers fn to run after every state or button change.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

func (c *Controller) changed() {
	c.mu.Lock()
	fns := append([]func(){}, c.onChange...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// setStateLocked moves to "to" if the table allows it. c.mu must be held.
func (c *Controller) setStateLocked(to State) error {
	s, err := next(c.state, to)
	if err != nil {
		c.Log().Warn().Str("Method", "setState").Err(err).Msg("transition rejected")
		return err
	}
	if s != c.state {
		c.Log().Debug().Str("From", c.state.String()).Str("To", s.String()).Msg("state change")
	}
	c.state = s
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) APIInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiInitialized
}

func (c *Controller) Casting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.casting
}

// Session returns the active session handle, or nil.
func (c *Controller) Session() castsdk.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastRestore returns the snapshot applied by the most recent stop.
func (c *Controller) LastRestore() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRestore
}

// Initialize configures the SDK. It is a no-op unless the controller is
// still uninitialized.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return nil
	}
	_ = c.setStateLocked(StateInitializing)
	opts := c.opts
	c.mu.Unlock()

	cfg := castsdk.APIConfig{
		SessionRequest:      castsdk.SessionRequest{AppID: opts.AppID},
		SessionListener:     c.OnSessionRejoined,
		ReceiverListener:    c.OnReceiverAvailabilityChanged,
		AutoJoinPolicy:      opts.AutoJoinPolicy,
		DefaultActionPolicy: opts.DefaultActionPolicy,
	}

	c.Log().Debug().Str("Method", "Initialize").Str("AppID", opts.AppID).Msg("initializing cast api")
	if err := c.sdk.Initialize(ctx, cfg); err != nil {
		return c.castError("Initialize", err, StateUninitialized)
	}

	c.mu.Lock()
	c.apiInitialized = true
	if c.state == StateInitializing {
		_ = c.setStateLocked(StateReady)
	}
	c.mu.Unlock()

	c.Log().Debug().Str("Method", "Initialize").Msg("cast api initialized")
	c.changed()
	return nil
}

// OnReceiverAvailabilityChanged shows the control once a receiver is around.
func (c *Controller) OnReceiverAvailabilityChanged(status castsdk.ReceiverAvailability) {
	c.Log().Debug().Str("Method", "OnReceiverAvailabilityChanged").Str("Status", string(status)).Msg("receiver availability")
	if status != castsdk.ReceiverAvailable {
		return
	}

	c.mu.Lock()
	c.shown = true
	c.mu.Unlock()
	c.changed()
}

// OnSessionRejoined picks up a session the SDK found already running. Only
// sessions that play media are taken over.
func (c *Controller) OnSessionRejoined(session castsdk.Session) {
	media := session.Media()
	if len(media) == 0 {
		c.Log().Debug().Str("Method", "OnSessionRejoined").Str("Session", session.ID()).Msg("rejoined session has no media")
		return
	}

	c.Log().Debug().Str("Method", "OnSessionRejoined").Str("Session", session.ID()).Msg("rejoined session with media")
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	// Listen once the media is known, so a death reported on registration
	// is not dropped.
	if err := c.onMediaDiscovered(session, media[0]); err != nil {
		return
	}
	c.watch(session)
}

// Launch requests a new session and casts the current media to it.
func (c *Controller) Launch(ctx context.Context) error {
	c.mu.Lock()
	if !c.apiInitialized {
		c.mu.Unlock()
		c.Log().Warn().Str("Method", "Launch").Msg("session not initialized")
		return ErrNotInitialized
	}
	if c.state.inFlight() {
		c.mu.Unlock()
		return ErrBusy
	}
	prev := c.state
	if err := c.setStateLocked(StateRequesting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.changed()

	session, err := c.sdk.RequestSession(ctx)
	if err != nil {
		return c.castError("RequestSession", err, prev)
	}

	return c.loadAndCastCurrentMedia(ctx, session, prev)
}

func (c *Controller) loadAndCastCurrentMedia(ctx context.Context, session castsdk.Session, prev State) error {
	c.mu.Lock()
	c.session = session
	metadata := c.opts.Metadata
	c.mu.Unlock()

	info := mediainfo.Build(mediainfo.FromHost(c.host, metadata))
	req := mediainfo.NewLoadRequest(info, c.host.CurrentTime())

	c.watch(session)

	c.Log().Debug().Str("Method", "LoadMedia").Str("Session", session.ID()).Str("ContentID", info.ContentID).
		Int("Tracks", len(info.Tracks)).Float64("CurrentTime", req.CurrentTime).Msg("loading media")
	media, err := session.LoadMedia(ctx, req)
	if err != nil {
		c.mu.Lock()
		if c.session == session {
			c.session = nil
		}
		c.mu.Unlock()
		return c.castError("LoadMedia", err, prev)
	}

	return c.onMediaDiscovered(session, media)
}

// watch binds the update listener to session so that late updates of an
// old session cannot end a newer one.
func (c *Controller) watch(session castsdk.Session) {
	session.AddUpdateListener(func(isAlive bool) {
		c.mu.Lock()
		current := c.session == session
		c.mu.Unlock()
		if current {
			c.OnSessionUpdate(isAlive)
		}
	})
}

// OnSessionUpdate ends casting locally once the session reports it is gone.
func (c *Controller) OnSessionUpdate(isAlive bool) {
	c.mu.Lock()
	hasMedia := c.media != nil
	c.mu.Unlock()

	if !hasMedia || isAlive {
		return
	}

	c.Log().Debug().Str("Method", "OnSessionUpdate").Msg("session died")
	c.stopSucceeded()
}

// Stop ends the active session.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	if session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.state.inFlight() {
		c.mu.Unlock()
		return ErrBusy
	}
	prev := c.state
	if err := c.setStateLocked(StateStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.changed()

	c.Log().Debug().Str("Method", "Stop").Str("Session", session.ID()).Msg("stopping session")
	if err := session.Stop(ctx); err != nil {
		return c.castError("Stop", err, prev)
	}

	c.stopSucceeded()
	return nil
}

// Toggle is the click action: stop while casting, launch otherwise.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.Casting() {
		return c.Stop(ctx)
	}
	return c.Launch(ctx)
}
