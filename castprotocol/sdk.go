package castprotocol

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/devices"
)

const (
	// DefaultStatusInterval between two status polls of a running session.
	DefaultStatusInterval = time.Second
	// maxStatusFailures in a row before a session is considered gone.
	maxStatusFailures = 3
)

// ReceiverSource lists cast receivers. *devices.Discovery implements it.
type ReceiverSource interface {
	Ready() bool
	Receivers() []devices.Receiver
	Subscribe(fn func(available bool))
}

// Picker lets the user choose a receiver. Returning a *castsdk.Error with
// code cancel dismisses the request.
type Picker func(ctx context.Context, receivers []devices.Receiver) (devices.Receiver, error)

type castClient interface {
	Connect() error
	Launch(appID string) (string, error)
	Load(transportID string, req castsdk.LoadRequest) error
	Play() error
	Pause() error
	Seek(seconds int) error
	SetVolume(level float32) error
	SetMuted(muted bool) error
	GetStatus() (*CastStatus, error)
	Close(stopMedia bool) error
}

var newClient = func(addr string, logger zerolog.Logger) (castClient, error) {
	c, err := NewCastClient(addr)
	if err != nil {
		return nil, err
	}
	c.Logger = logger
	return c, nil
}

// SDK implements castsdk.SDK on top of mDNS discovery and the cast protocol.
type SDK struct {
	receivers ReceiverSource

	// Picker chooses the receiver of a new session. Without one the first
	// receiver is used.
	Picker Picker
	// Rejoin is a receiver name or address checked for a running session
	// during Initialize.
	Rejoin string
	// StatusInterval between two status polls of a running session.
	StatusInterval time.Duration

	mu          sync.Mutex
	cfg         castsdk.APIConfig
	initialized bool

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// NewSDK returns an SDK choosing among the receivers of source.
func NewSDK(source ReceiverSource) *SDK {
	return &SDK{
		receivers:      source,
		StatusInterval: DefaultStatusInterval,
		Logger:         zerolog.Nop(),
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (s *SDK) Log() *zerolog.Logger {
	if s.LogOutput != nil {
		s.initLogOnce.Do(func() {
			s.Logger = zerolog.New(s.LogOutput).With().Timestamp().Str("Component", "castprotocol").Logger()
		})
	}
	return &s.Logger
}

// IsAvailable reports whether the receiver source finished its first
// browse of the network.
func (s *SDK) IsAvailable() bool {
	return s.receivers != nil && s.receivers.Ready()
}

// Initialize stores cfg, starts forwarding receiver availability and, unless
// the policy is page scoped, rejoins a session already running on Rejoin.
func (s *SDK) Initialize(ctx context.Context, cfg castsdk.APIConfig) error {
	if s.receivers == nil {
		return castsdk.NewError(castsdk.ErrorExtensionMissing, "no receiver source", nil)
	}
	if cfg.SessionRequest.AppID == "" {
		return castsdk.NewError(castsdk.ErrorInvalidParameter, "session request without app id", nil)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.initialized = true
	s.mu.Unlock()

	if cfg.ReceiverListener != nil {
		s.receivers.Subscribe(func(available bool) {
			cfg.ReceiverListener(availability(available))
		})
		cfg.ReceiverListener(availability(len(s.receivers.Receivers()) > 0))
	}

	if s.Rejoin != "" && cfg.AutoJoinPolicy != castsdk.AutoJoinPageScoped && cfg.SessionListener != nil {
		if sess := s.rejoin(ctx, cfg.SessionRequest.AppID); sess != nil {
			cfg.SessionListener(sess)
		}
	}
	return nil
}

func availability(available bool) castsdk.ReceiverAvailability {
	if available {
		return castsdk.ReceiverAvailable
	}
	return castsdk.ReceiverUnavailable
}

// rejoin returns the session of appID running on the Rejoin receiver, or nil.
func (s *SDK) rejoin(ctx context.Context, appID string) *session {
	r, err := devices.Find(s.receivers.Receivers(), s.Rejoin)
	if err != nil {
		r = devices.Receiver{Name: s.Rejoin, Addr: s.Rejoin}
	}

	client, err := newClient(r.Addr, *s.Log())
	if err != nil {
		s.Log().Debug().Str("Method", "rejoin").Str("Addr", r.Addr).Err(err).Msg("no client")
		return nil
	}
	if err := do(ctx, client.Connect); err != nil {
		s.Log().Debug().Str("Method", "rejoin").Str("Addr", r.Addr).Err(err).Msg("receiver not reachable")
		return nil
	}

	var st *CastStatus
	err = do(ctx, func() error {
		var err error
		st, err = client.GetStatus()
		return err
	})
	if err != nil || st.AppID != appID || st.TransportID == "" {
		s.Log().Debug().Str("Method", "rejoin").Str("Addr", r.Addr).Msg("no running session")
		_ = client.Close(false)
		return nil
	}

	sess := s.newSession(client, r, appID, st.TransportID)
	if st.ContentID != "" && st.State() != castsdk.PlayerStateIdle {
		m := &remoteMedia{client: client, contentID: st.ContentID}
		m.update(st)
		sess.media = []castsdk.Media{m}
		sess.watch()
	}

	s.Log().Info().Str("Method", "rejoin").Str("Receiver", r.Name).Str("Session", sess.id).
		Int("Media", len(sess.media)).Msg("rejoined running session")
	return sess
}

// RequestSession asks the Picker for a receiver, connects to it and
// launches the configured application.
func (s *SDK) RequestSession(ctx context.Context) (castsdk.Session, error) {
	s.mu.Lock()
	initialized := s.initialized
	appID := s.cfg.SessionRequest.AppID
	s.mu.Unlock()

	if !initialized {
		return nil, castsdk.NewError(castsdk.ErrorAPINotInitialized, "cast api not initialized", nil)
	}

	receivers := s.receivers.Receivers()
	if len(receivers) == 0 {
		return nil, castsdk.NewError(castsdk.ErrorReceiverUnavailable, "no receivers found", devices.ErrNoReceivers)
	}

	pick := s.Picker
	if pick == nil {
		pick = func(_ context.Context, rs []devices.Receiver) (devices.Receiver, error) {
			return rs[0], nil
		}
	}
	r, err := pick(ctx, receivers)
	if err != nil {
		return nil, castsdk.AsError(err)
	}

	s.Log().Debug().Str("Method", "RequestSession").Str("Receiver", r.Name).Str("Addr", r.Addr).Msg("connecting")
	client, err := newClient(r.Addr, *s.Log())
	if err != nil {
		return nil, castsdk.NewError(castsdk.ErrorInvalidParameter, "bad receiver address", err)
	}
	if err := do(ctx, client.Connect); err != nil {
		return nil, sdkError(castsdk.ErrorReceiverUnavailable, "connect to "+r.Name, err)
	}

	var transportID string
	err = do(ctx, func() error {
		var err error
		transportID, err = client.Launch(appID)
		return err
	})
	if err != nil {
		_ = client.Close(false)
		return nil, sdkError(castsdk.ErrorSessionError, "launch "+appID+" on "+r.Name, err)
	}

	return s.newSession(client, r, appID, transportID), nil
}

func (s *SDK) statusInterval() time.Duration {
	if s.StatusInterval <= 0 {
		return DefaultStatusInterval
	}
	return s.StatusInterval
}

// do runs fn and gives up waiting when ctx ends first. The cast library
// calls are not cancelable, fn keeps running in that case.
func do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// sdkError turns a transport failure into a platform error. Context ends
// and network timeouts keep their own codes.
func sdkError(code castsdk.ErrorCode, description string, err error) *castsdk.Error {
	if castErr := castsdk.AsError(err); castErr.Code != castsdk.ErrorUnknown {
		return castErr
	}
	if isTimeoutError(err) {
		return castsdk.NewError(castsdk.ErrorTimeout, description, err)
	}
	return castsdk.NewError(code, description, err)
}

type session struct {
	sdk      *SDK
	client   castClient
	receiver devices.Receiver
	appID    string
	id       string

	mu        sync.Mutex
	media     []castsdk.Media
	listeners []func(bool)
	cancel    context.CancelFunc
	ended     bool
	// dead is set once the receiver side went away.
	dead bool
}

func (s *SDK) newSession(client castClient, r devices.Receiver, appID, transportID string) *session {
	return &session{
		sdk:      s,
		client:   client,
		receiver: r,
		appID:    appID,
		id:       transportID,
	}
}

func (s *session) ID() string           { return s.id }
func (s *session) ReceiverName() string { return s.receiver.Name }

func (s *session) Media() []castsdk.Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]castsdk.Media(nil), s.media...)
}

func (s *session) LoadMedia(ctx context.Context, req castsdk.LoadRequest) (castsdk.Media, error) {
	err := do(ctx, func() error { return s.client.Load(s.id, req) })
	if err != nil {
		s.release()
		return nil, sdkError(castsdk.ErrorLoadMediaFailed, "load "+req.Media.ContentID, err)
	}

	m := &remoteMedia{
		client:      s.client,
		contentID:   req.Media.ContentID,
		currentTime: req.CurrentTime,
		state:       castsdk.PlayerStateBuffering,
	}

	s.mu.Lock()
	s.media = []castsdk.Media{m}
	s.mu.Unlock()

	s.watch()
	return m, nil
}

// AddUpdateListener registers fn. A session that already died reports it
// to fn right away.
func (s *session) AddUpdateListener(fn func(isAlive bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	dead := s.dead
	s.mu.Unlock()

	if dead {
		fn(false)
	}
}

// release disconnects from a session nobody will use, leaving the receiver
// application running.
func (s *session) release() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if err := s.client.Close(false); err != nil {
		s.sdk.Log().Debug().Str("Method", "release").Str("Session", s.id).Err(err).Msg("close failed")
	}
}

// Stop ends the session on the receiver. Listeners are not told: the
// caller asked for it.
func (s *session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.ended = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if err := do(ctx, func() error { return s.client.Close(true) }); err != nil {
		return sdkError(castsdk.ErrorSessionError, "stop session "+s.id, err)
	}
	return nil
}

// watch polls the receiver until the session ends. A single poller runs per
// session.
func (s *session) watch() {
	s.mu.Lock()
	if s.cancel != nil || s.ended {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.poll(ctx)
}

func (s *session) poll(ctx context.Context) {
	ticker := time.NewTicker(s.sdk.statusInterval())
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := s.client.GetStatus()
		if err != nil {
			failures++
			s.sdk.Log().Debug().Str("Method", "poll").Str("Session", s.id).Int("Failures", failures).Err(err).Msg("status failed")
			if failures >= maxStatusFailures {
				s.end()
				return
			}
			continue
		}
		failures = 0

		if st.AppID != s.appID {
			s.sdk.Log().Debug().Str("Method", "poll").Str("Session", s.id).Str("AppID", st.AppID).Msg("application gone")
			s.end()
			return
		}

		s.mu.Lock()
		media := s.media
		s.mu.Unlock()
		for _, m := range media {
			if rm, ok := m.(*remoteMedia); ok {
				rm.update(st)
			}
		}
	}
}

// end reports the session as dead to every listener, once.
func (s *session) end() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.dead = true
	s.cancel = nil
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	_ = s.client.Close(false)
	for _, fn := range listeners {
		fn(false)
	}
}

// remoteMedia is the media running on a receiver. Time and state are the
// last values the session poller saw.
type remoteMedia struct {
	client    castClient
	contentID string

	mu          sync.Mutex
	currentTime float64
	state       castsdk.PlayerState
	volume      float64
	muted       bool
}

func (m *remoteMedia) update(st *CastStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = float64(st.CurrentTime)
	m.state = st.State()
	m.volume = float64(st.Volume)
	m.muted = st.Muted
}

func (m *remoteMedia) ContentID() string { return m.contentID }

func (m *remoteMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *remoteMedia) PlayerState() castsdk.PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *remoteMedia) Play(ctx context.Context) error {
	if err := do(ctx, m.client.Play); err != nil {
		return sdkError(castsdk.ErrorSessionError, "play", err)
	}
	m.mu.Lock()
	m.state = castsdk.PlayerStatePlaying
	m.mu.Unlock()
	return nil
}

func (m *remoteMedia) Pause(ctx context.Context) error {
	if err := do(ctx, m.client.Pause); err != nil {
		return sdkError(castsdk.ErrorSessionError, "pause", err)
	}
	m.mu.Lock()
	m.state = castsdk.PlayerStatePaused
	m.mu.Unlock()
	return nil
}

func (m *remoteMedia) Seek(ctx context.Context, seconds float64) error {
	if err := do(ctx, func() error { return m.client.Seek(int(math.Round(seconds))) }); err != nil {
		return sdkError(castsdk.ErrorSessionError, "seek", err)
	}
	m.mu.Lock()
	m.currentTime = seconds
	m.mu.Unlock()
	return nil
}

func (m *remoteMedia) Volume() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume, m.muted
}

// SetVolume sets the receiver volume, clamped to [0, 1].
func (m *remoteMedia) SetVolume(ctx context.Context, level float64) error {
	level = min(max(level, 0), 1)
	if err := do(ctx, func() error { return m.client.SetVolume(float32(level)) }); err != nil {
		return sdkError(castsdk.ErrorSessionError, "set volume", err)
	}
	m.mu.Lock()
	m.volume = level
	m.mu.Unlock()
	return nil
}

func (m *remoteMedia) SetMuted(ctx context.Context, muted bool) error {
	if err := do(ctx, func() error { return m.client.SetMuted(muted) }); err != nil {
		return sdkError(castsdk.ErrorSessionError, "set muted", err)
	}
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	return nil
}

var (
	_ castsdk.SDK           = (*SDK)(nil)
	_ castsdk.Session       = (*session)(nil)
	_ castsdk.Media         = (*remoteMedia)(nil)
	_ castsdk.VolumeControl = (*remoteMedia)(nil)
)
