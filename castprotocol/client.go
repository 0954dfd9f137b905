package castprotocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vishen/go-chromecast/application"
	"github.com/vishen/go-chromecast/cast"
	"go2tv.app/castbutton/castsdk"
)

// DefaultPort is the cast control port receivers listen on.
const DefaultPort = 8009

const (
	wakeAttempts      = 5
	transportAttempts = 8
)

var (
	// wakeDelay is the pause between attempts while a receiver wakes up.
	wakeDelay = 4 * time.Second
	// updateBackoff is the step of the linear backoff between status updates.
	updateBackoff = 500 * time.Millisecond
)

// CastClient wraps go-chromecast Application for simplified API
type CastClient struct {
	app         *application.Application
	conn        cast.Conn // keep reference to connection for custom commands
	mu          sync.RWMutex
	host        string
	port        int
	connected   bool
	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *CastClient) Log() *zerolog.Logger {
	if c.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.Logger = zerolog.New(c.LogOutput).With().Timestamp().Logger()
		})
	}
	return &c.Logger
}

// NewCastClient returns a client for the receiver at deviceAddr, given as
// host:port or as a URL. The port defaults to DefaultPort.
func NewCastClient(deviceAddr string) (*CastClient, error) {
	if !strings.Contains(deviceAddr, "://") {
		deviceAddr = "http://" + deviceAddr
	}

	u, err := url.Parse(deviceAddr)
	if err != nil {
		return nil, fmt.Errorf("parse device addr: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("parse device addr: no host in %q", deviceAddr)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse device port: %w", err)
		}
	}

	conn := cast.NewConnection()

	// Slow TVs need a few tries to wake up.
	app := application.NewApplication(
		application.WithConnection(conn),
		application.WithConnectionRetries(5),
	)

	return &CastClient{
		app:    app,
		conn:   conn,
		host:   u.Hostname(),
		port:   port,
		Logger: zerolog.Nop(),
	}, nil
}

// Connect establishes connection to the Chromecast device.
func (c *CastClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.app == nil {
		return fmt.Errorf("chromecast connect: app is nil")
	}

	c.Log().Debug().Str("Method", "Connect").Str("Host", c.host).Int("Port", c.port).Msg("connecting")
	if err := c.app.Start(c.host, c.port); err != nil {
		c.Log().Error().Str("Method", "Connect").Err(err).Msg("connection failed")
		return fmt.Errorf("chromecast connect: %w", err)
	}
	c.connected = true
	c.Log().Debug().Str("Method", "Connect").Msg("connected successfully")
	return nil
}

// isTimeoutError checks if an error is a timeout/deadline exceeded error.
// This typically happens when the TV needs to wake from sleep.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// Launch starts appID on the receiver and returns the transport ID of its
// media channel. Timeouts are retried while the receiver wakes up.
func (c *CastClient) Launch(appID string) (string, error) {
	c.Log().Debug().Str("Method", "Launch").Str("AppID", appID).Msg("launching receiver app")

	var lastErr error
	for attempt := range wakeAttempts {
		if !c.IsConnected() {
			return "", fmt.Errorf("launch %s: not connected", appID)
		}

		if err := launchReceiver(c.conn, appID); err != nil {
			lastErr = err
			if isTimeoutError(err) && attempt < wakeAttempts-1 {
				c.Log().Debug().Str("Method", "Launch").Int("Attempt", attempt).Err(err).Msg("timeout, TV may be waking up, retrying...")
				time.Sleep(wakeDelay)
				continue
			}
			c.Log().Error().Str("Method", "Launch").Err(err).Msg("launch receiver failed")
			return "", fmt.Errorf("launch receiver: %w", err)
		}

		transportID := c.waitTransport(appID)
		if transportID != "" {
			return transportID, nil
		}

		lastErr = fmt.Errorf("launch %s: no transport ID after retries", appID)
		if attempt < wakeAttempts-1 {
			c.Log().Debug().Str("Method", "Launch").Int("Attempt", attempt).Msg("no transport ID, TV may be waking up, retrying...")
			time.Sleep(wakeDelay)
		}
	}

	c.Log().Error().Str("Method", "Launch").Err(lastErr).Msg("launch failed")
	return "", lastErr
}

// waitTransport polls the receiver until appID reports a transport ID.
// It handles "media receiver app not available" while the app starts.
func (c *CastClient) waitTransport(appID string) string {
	for i := range transportAttempts {
		if !c.IsConnected() {
			return ""
		}

		if err := c.app.Update(); err != nil {
			c.Log().Debug().Str("Method", "waitTransport").Int("Attempt", i+1).Err(err).Msg("app.Update retry")
			time.Sleep(time.Duration(i+1) * updateBackoff)
			continue
		}

		app := c.app.App()
		if app != nil && app.AppId == appID && app.TransportId != "" {
			c.Log().Debug().Str("Method", "waitTransport").Str("TransportId", app.TransportId).Msg("got transport ID")
			return app.TransportId
		}
		time.Sleep(time.Duration(i+1) * updateBackoff)
	}
	return ""
}

// Load sends a LOAD with the full media description to transportID.
// Live streams are loaded paused and started right away, which avoids the
// long buffering receivers apply to autoplayed live content.
func (c *CastClient) Load(transportID string, req castsdk.LoadRequest) error {
	live := req.Media.StreamType == castsdk.StreamTypeLive
	c.Log().Debug().Str("Method", "Load").Str("URL", req.Media.ContentID).Str("ContentType", req.Media.ContentType).
		Float64("StartTime", req.CurrentTime).Int("Tracks", len(req.Media.Tracks)).Bool("Live", live).Msg("loading media")

	if !c.IsConnected() {
		return fmt.Errorf("load: not connected")
	}

	autoplay := req.Autoplay
	if live {
		req.Autoplay = false
	}

	var lastErr error
	for attempt := range wakeAttempts {
		err := sendLoad(c.conn, transportID, req)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if !isTimeoutError(err) || attempt == wakeAttempts-1 {
			break
		}
		c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Err(err).Msg("timeout, TV may be waking up, retrying...")
		time.Sleep(wakeDelay)
	}
	if lastErr != nil {
		c.Log().Error().Str("Method", "Load").Err(lastErr).Msg("load failed")
		return lastErr
	}

	if live && autoplay {
		c.Log().Debug().Str("Method", "Load").Msg("live stream loaded paused, sending immediate PLAY")
		var playErr error
		for i := range 3 {
			// app.Unpause needs the mediaSessionId of the LOAD response.
			if err := c.app.Update(); err != nil {
				playErr = err
				time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
				continue
			}
			playErr = c.app.Unpause()
			if playErr == nil {
				break
			}
			time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
		}
		if playErr != nil {
			c.Log().Warn().Str("Method", "Load").Err(playErr).Msg("play command failed after retries")
		}
	}

	c.Log().Debug().Str("Method", "Load").Msg("load success")
	return nil
}

// Play resumes playback.
func (c *CastClient) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Log().Debug().Str("Method", "Play").Msg("resuming playback")
	err := c.app.Unpause()
	if err != nil {
		c.Log().Error().Str("Method", "Play").Err(err).Msg("failed")
	}
	return err
}

// Pause pauses playback.
func (c *CastClient) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Log().Debug().Str("Method", "Pause").Msg("pausing playback")
	err := c.app.Pause()
	if err != nil {
		c.Log().Error().Str("Method", "Pause").Err(err).Msg("failed")
	}
	return err
}

// Stop stops playback and closes the media session.
func (c *CastClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Log().Debug().Str("Method", "Stop").Msg("stopping playback")
	err := c.app.Stop()
	if err != nil {
		c.Log().Error().Str("Method", "Stop").Err(err).Msg("failed")
	}
	return err
}

// Seek seeks to position in seconds from start.
func (c *CastClient) Seek(seconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Log().Debug().Str("Method", "Seek").Int("Seconds", seconds).Msg("seeking")
	err := c.app.SeekFromStart(seconds)
	if err != nil {
		c.Log().Error().Str("Method", "Seek").Err(err).Msg("failed")
	}
	return err
}

// SetVolume sets volume (0.0 to 1.0).
func (c *CastClient) SetVolume(level float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Log().Debug().Str("Method", "SetVolume").Float32("Level", level).Msg("setting volume")
	err := c.app.SetVolume(level)
	if err != nil {
		c.Log().Error().Str("Method", "SetVolume").Err(err).Msg("failed")
	}
	return err
}

// SetMuted sets mute state.
func (c *CastClient) SetMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Log().Debug().Str("Method", "SetMuted").Bool("Muted", muted).Msg("setting mute")
	err := c.app.SetMuted(muted)
	if err != nil {
		c.Log().Error().Str("Method", "SetMuted").Err(err).Msg("failed")
	}
	return err
}

// GetStatus returns current playback status.
// No mutex needed - only reads from underlying library which has its own sync.
func (c *CastClient) GetStatus() (*CastStatus, error) {
	if err := c.app.Update(); err != nil {
		c.Log().Debug().Str("Method", "GetStatus").Err(err).Msg("app.Update failed")
		return nil, err
	}
	app, media, vol := c.app.Status()
	status := &CastStatus{PlayerState: string(castsdk.PlayerStateIdle)}
	if app != nil {
		status.AppID = app.AppId
		status.TransportID = app.TransportId
	}
	if vol != nil {
		status.Volume = float32(vol.Level)
		status.Muted = vol.Muted
	}
	if media != nil {
		status.PlayerState = media.PlayerState
		status.IdleReason = media.IdleReason
		status.CurrentTime = media.CurrentTime
		if media.Media.Duration > 0 {
			status.Duration = media.Media.Duration
		}
		status.ContentID = media.Media.ContentId
		status.ContentType = media.Media.ContentType
		status.MediaTitle = media.Media.Metadata.Title
	}
	return status, nil
}

// Close disconnects from the Chromecast device.
func (c *CastClient) Close(stopMedia bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Log().Debug().Str("Method", "Close").Bool("StopMedia", stopMedia).Msg("closing connection")
	c.connected = false
	err := c.app.Close(stopMedia)
	if err != nil {
		c.Log().Error().Str("Method", "Close").Err(err).Msg("failed")
	}
	return err
}

// IsConnected returns whether client is connected.
func (c *CastClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Host returns the hostname of the Chromecast device.
func (c *CastClient) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}
