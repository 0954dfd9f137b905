// Package casttech is the playback tech used while casting: player calls
// are forwarded to the media running on the receiver.
package casttech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/player"
)

const (
	// Name the tech is registered under.
	Name = "Chromecast"
	// Type expected in player.TechOptions.
	Type = "cast"

	requestTimeout = 10 * time.Second
)

var (
	ErrMissingMedia = errors.New("casttech: options carry no media or session")
	// ErrNoVolume is returned when the receiver media has no volume control.
	ErrNoVolume = errors.New("casttech: media has no volume control")
)

// Tech drives remote media through the cast SDK.
type Tech struct {
	media   castsdk.Media
	session castsdk.Session
}

// New builds a Tech from the handoff options.
func New(opts player.TechOptions) (player.Tech, error) {
	if opts.Type != Type {
		return nil, fmt.Errorf("casttech: unexpected tech type %q", opts.Type)
	}
	if opts.APIMedia == nil || opts.APISession == nil {
		return nil, ErrMissingMedia
	}
	return &Tech{media: opts.APIMedia, session: opts.APISession}, nil
}

// Register adds the tech to a player.
func Register(p interface {
	RegisterTech(name string, factory player.TechFactory)
}) {
	p.RegisterTech(Name, New)
}

func (t *Tech) Name() string {
	return Name
}

// Session is the cast session the tech plays on.
func (t *Tech) Session() castsdk.Session {
	return t.session
}

func (t *Tech) CurrentTime() float64 {
	return t.media.CurrentTime()
}

func (t *Tech) SetCurrentTime(seconds float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return t.media.Seek(ctx, seconds)
}

func (t *Tech) Paused() bool {
	switch t.media.PlayerState() {
	case castsdk.PlayerStatePlaying, castsdk.PlayerStateBuffering:
		return false
	}
	return true
}

func (t *Tech) Play() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return t.media.Play(ctx)
}

func (t *Tech) Pause() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return t.media.Pause(ctx)
}

// Volume reports the receiver volume. Media without volume control reads
// as full and unmuted.
func (t *Tech) Volume() (float64, bool) {
	vc, ok := t.media.(castsdk.VolumeControl)
	if !ok {
		return 1, false
	}
	return vc.Volume()
}

func (t *Tech) SetVolume(level float64) error {
	vc, ok := t.media.(castsdk.VolumeControl)
	if !ok {
		return ErrNoVolume
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return vc.SetVolume(ctx, level)
}

func (t *Tech) SetMuted(muted bool) error {
	vc, ok := t.media.(castsdk.VolumeControl)
	if !ok {
		return ErrNoVolume
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return vc.SetMuted(ctx, muted)
}

var _ player.VolumeTech = (*Tech)(nil)

// Dispose leaves the session alone; ending it is up to the cast control.
func (t *Tech) Dispose() {}
