// Package player is the host media player the cast control plugs into: the
// contract the plugin relies on and a headless implementation of it.
package player

import (
	"context"
	"time"

	"go2tv.app/castbutton/castsdk"
)

// Player events.
const (
	EventLoadedData = "loadeddata"
	EventSeeked     = "seeked"
	EventPlay       = "play"
	EventPause      = "pause"
	EventTechChange = "techchange"
	EventError      = "error"
)

// Source is one entry of the player's source list.
type Source struct {
	Src  string `json:"src" mapstructure:"src"`
	Type string `json:"type" mapstructure:"type"`
}

// TextTrack is a local text track. Src may be relative to the player origin.
type TextTrack struct {
	ID       string `json:"id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Src      string `json:"src"`
	Label    string `json:"label,omitempty"`
	Language string `json:"language,omitempty"`
}

// TechOptions is the payload handed to a tech factory on LoadTech.
type TechOptions struct {
	Type       string
	Source     Source
	APIMedia   castsdk.Media
	APISession castsdk.Session
}

// MediaError is a player-level error.
type MediaError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e MediaError) Error() string {
	return "player error " + e.Code + ": " + e.Message
}

// Tech is a playback backend.
type Tech interface {
	Name() string
	CurrentTime() float64
	SetCurrentTime(seconds float64) error
	Paused() bool
	Play() error
	Pause() error
	Dispose()
}

// VolumeTech is a tech whose output volume can be changed. Levels range
// from 0 to 1.
type VolumeTech interface {
	Tech
	Volume() (level float64, muted bool)
	SetVolume(level float64) error
	SetMuted(muted bool) error
}

// TechFactory builds a Tech from the options passed to LoadTech.
type TechFactory func(opts TechOptions) (Tech, error)

// Control is a control bar component.
type Control interface {
	Name() string
	// Mount is called once the control is attached to a control bar.
	Mount()
	Render() string
	Visible() bool
	HandleClick(ctx context.Context) error
}

// ControlBar holds the ordered controls of a player.
type ControlBar interface {
	Child(name string) Control
	// AddChildBefore inserts c right before the control named before, or at
	// the end when there is no such control.
	AddChildBefore(c Control, before string) Control
	Children() []Control
}

// Host is everything the cast control needs from the player.
type Host interface {
	CurrentSource() string
	CurrentType() string
	Sources() []Source
	SetSources(sources []Source) error
	CurrentTime() float64
	SetCurrentTime(seconds float64) error
	Paused() bool
	Play() error
	Poster() string
	TextTracks() []TextTrack
	// Origin is the scheme://host[:port] relative track sources resolve against.
	Origin() string
	InactivityTimeout() time.Duration
	SetInactivityTimeout(d time.Duration)
	UserActive(active bool)
	LoadTech(name string, opts TechOptions) error
	Error(err MediaError)
	On(event string, fn func())
	ControlBar() ControlBar
}
