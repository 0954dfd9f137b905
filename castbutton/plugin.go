package castbutton

import (
	"context"
	"sync"

	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/player"
)

// Plugin ties a Controller and its Button to a player.
type Plugin struct {
	ctx        context.Context
	host       player.Host
	sdk        castsdk.SDK
	controller *Controller
	button     *Button
	prober     *Prober

	mu      sync.Mutex
	probing bool
	done    chan struct{}
}

// Register attaches the cast control to host. On every "loadeddata" the
// button is put in the control bar, before the fullscreen toggle, and the
// SDK is probed until the controller is initialized. With no SDK at all,
// Register does nothing and returns nil.
func Register(ctx context.Context, host player.Host, sdk castsdk.SDK, opts Options) *Plugin {
	if sdk == nil {
		return nil
	}

	opts = opts.withDefaults()
	c := NewController(host, sdk, opts)
	p := &Plugin{
		ctx:        ctx,
		host:       host,
		sdk:        sdk,
		controller: c,
		button:     NewButton(c),
		prober: &Prober{
			Interval:    opts.PollInterval,
			MaxAttempts: opts.MaxPollAttempts,
		},
	}

	host.On(player.EventLoadedData, p.onLoadedData)
	return p
}

// Controller is the session controller of the plugin.
func (p *Plugin) Controller() *Controller {
	return p.controller
}

// Button is the control bar button of the plugin.
func (p *Plugin) Button() *Button {
	return p.button
}

func (p *Plugin) onLoadedData() {
	bar := p.host.ControlBar()
	if bar.Child(ButtonName) == nil {
		bar.AddChildBefore(p.button, player.FullscreenToggleName)
	}

	p.mu.Lock()
	if p.probing || p.controller.State() != StateUninitialized {
		p.mu.Unlock()
		return
	}
	p.probing = true
	p.done = make(chan struct{})
	done := p.done
	p.prober.Logger = *p.controller.Log()
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.prober.Run(p.ctx, p.sdk, func() {
			_ = p.controller.Initialize(p.ctx)
		})

		p.mu.Lock()
		p.probing = false
		p.mu.Unlock()
	}()
}

// Probed returns a channel closed when the current probe finishes, or nil
// when no probe was ever started.
func (p *Plugin) Probed() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
