package castbutton

import (
	"context"
	"time"

	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/casttech"
	"go2tv.app/castbutton/player"
)

// releaseTimeout bounds ending a session the player could not take over.
const releaseTimeout = 5 * time.Second

// onMediaDiscovered hands playback over to the cast tech.
func (c *Controller) onMediaDiscovered(session castsdk.Session, media castsdk.Media) error {
	c.mu.Lock()
	wasCasting := c.casting
	c.mu.Unlock()

	var sources []player.Source
	if !wasCasting {
		sources = c.host.Sources()
	}

	if err := c.host.LoadTech(casttech.Name, player.TechOptions{
		Type:       casttech.Type,
		APIMedia:   media,
		APISession: session,
	}); err != nil {
		c.Log().Error().Str("Method", "onMediaDiscovered").Err(err).Msg("cast tech failed to load")
		c.mu.Lock()
		if c.session == session {
			c.session = nil
		}
		_ = c.setStateLocked(StateError)
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		if serr := session.Stop(ctx); serr != nil {
			c.Log().Warn().Str("Method", "onMediaDiscovered").Str("Session", session.ID()).Err(serr).Msg("session release failed")
		}
		cancel()

		c.changed()
		c.host.Error(player.MediaError{Code: "tech_load_failed", Message: err.Error()})
		return err
	}

	c.mu.Lock()
	c.casting = true
	c.session = session
	c.media = media
	if !wasCasting {
		c.snapshot.Sources = sources
		c.snapshot.InactivityTimeout = c.host.InactivityTimeout()
	}
	c.mu.Unlock()

	c.host.SetInactivityTimeout(0)
	c.host.UserActive(true)

	c.mu.Lock()
	c.connected = true
	c.errored = false
	_ = c.setStateLocked(StateCasting)
	c.mu.Unlock()

	c.Log().Info().Str("Method", "onMediaDiscovered").Str("Session", session.ID()).
		Str("Receiver", session.ReceiverName()).Str("ContentID", media.ContentID()).Msg("casting")
	c.changed()
	return nil
}

// stopSucceeded brings local playback back once the session is over.
func (c *Controller) stopSucceeded() {
	c.mu.Lock()
	if c.session == nil && !c.casting {
		c.mu.Unlock()
		return
	}
	c.casting = false
	c.session = nil
	c.media = nil
	snap := c.snapshot
	c.mu.Unlock()

	// The cast tech is still active: time and paused state are the receiver's.
	snap.CurrentTime = c.host.CurrentTime()
	snap.WasPlaying = !c.host.Paused()

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	if err := c.host.SetSources(snap.Sources); err != nil {
		c.Log().Error().Str("Method", "stopSucceeded").Err(err).Msg("restore sources")
	}
	if err := c.host.SetCurrentTime(snap.CurrentTime); err != nil {
		c.Log().Error().Str("Method", "stopSucceeded").Err(err).Msg("restore position")
	}
	c.host.SetInactivityTimeout(snap.InactivityTimeout)
	if snap.WasPlaying {
		if err := c.host.Play(); err != nil {
			c.Log().Error().Str("Method", "stopSucceeded").Err(err).Msg("resume local playback")
		}
	}

	c.mu.Lock()
	c.lastRestore = snap
	c.snapshot.Sources = nil
	_ = c.setStateLocked(StateReady)
	c.mu.Unlock()

	c.Log().Info().Str("Method", "stopSucceeded").Float64("CurrentTime", snap.CurrentTime).
		Bool("WasPlaying", snap.WasPlaying).Msg("local playback restored")
	c.changed()
}
