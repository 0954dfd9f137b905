// Package castsdk describes the cast platform the sender talks to: the calls
// made into it and the callbacks expected back. Implementations own the wire
// protocol, the castbutton package only sees these interfaces.
package castsdk

import "context"

// DefaultMediaReceiverAppID is the generic receiver application shipped by
// the platform.
const DefaultMediaReceiverAppID = "CC1AD845"

// AutoJoinPolicy decides which running sessions are rejoined on initialize.
type AutoJoinPolicy string

const (
	AutoJoinTabAndOriginScoped AutoJoinPolicy = "tab_and_origin_scoped"
	AutoJoinOriginScoped       AutoJoinPolicy = "origin_scoped"
	AutoJoinPageScoped         AutoJoinPolicy = "page_scoped"
)

// DefaultActionPolicy tells the platform what a fresh session should do.
type DefaultActionPolicy string

const (
	DefaultActionCreateSession DefaultActionPolicy = "create_session"
	DefaultActionCastThisTab   DefaultActionPolicy = "cast_this_tab"
)

// ReceiverAvailability is reported through APIConfig.ReceiverListener.
type ReceiverAvailability string

const (
	ReceiverAvailable   ReceiverAvailability = "available"
	ReceiverUnavailable ReceiverAvailability = "unavailable"
)

// SessionRequest names the receiver application a session should run.
type SessionRequest struct {
	AppID string
}

// APIConfig is handed to SDK.Initialize.
type APIConfig struct {
	SessionRequest      SessionRequest
	SessionListener     func(Session)
	ReceiverListener    func(ReceiverAvailability)
	AutoJoinPolicy      AutoJoinPolicy
	DefaultActionPolicy DefaultActionPolicy
}

// SDK is the platform casting capability.
type SDK interface {
	// IsAvailable reports whether the platform finished loading and can be
	// initialized.
	IsAvailable() bool
	Initialize(ctx context.Context, cfg APIConfig) error
	// RequestSession asks the user for a receiver and starts a session on it.
	RequestSession(ctx context.Context) (Session, error)
}

// Session is an active sender/receiver connection owned by the SDK.
type Session interface {
	ID() string
	ReceiverName() string
	// Media returns the media already running on the receiver, most recent first.
	Media() []Media
	LoadMedia(ctx context.Context, req LoadRequest) (Media, error)
	// AddUpdateListener registers fn to be called whenever the session
	// changes; isAlive is false once the session is gone.
	AddUpdateListener(fn func(isAlive bool))
	Stop(ctx context.Context) error
}

// PlayerState mirrors the receiver's media player state.
type PlayerState string

const (
	PlayerStateIdle      PlayerState = "IDLE"
	PlayerStatePlaying   PlayerState = "PLAYING"
	PlayerStatePaused    PlayerState = "PAUSED"
	PlayerStateBuffering PlayerState = "BUFFERING"
)

// Media is a handle on media loaded into a receiver.
type Media interface {
	ContentID() string
	// CurrentTime is the last known playback position in seconds.
	CurrentTime() float64
	PlayerState() PlayerState
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
}

// VolumeControl is implemented by media whose receiver volume can be set.
// Levels range from 0 to 1.
type VolumeControl interface {
	Volume() (level float64, muted bool)
	SetVolume(ctx context.Context, level float64) error
	SetMuted(ctx context.Context, muted bool) error
}
