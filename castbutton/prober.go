package castbutton

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go2tv.app/castbutton/castsdk"
)

// Prober polls for the cast SDK after the player has data.
type Prober struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      zerolog.Logger
}

// Run checks sdk.IsAvailable every Interval, at most MaxAttempts times. On
// the first success init is called once and Run returns true. A nil sdk
// returns false right away. Giving up is silent.
func (p *Prober) Run(ctx context.Context, sdk castsdk.SDK, init func()) bool {
	if sdk == nil {
		return false
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPollAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		if sdk.IsAvailable() {
			ticker.Stop()
			p.Logger.Debug().Str("Method", "Prober.Run").Int("Attempt", attempt).Msg("cast sdk available")
			init()
			return true
		}
		p.Logger.Debug().Str("Method", "Prober.Run").Int("Attempt", attempt).Msg("cast sdk not available yet")
	}

	return false
}
