package player

import (
	"sync"
	"time"
)

// localTech plays a source on the local clock. It has no decoder: position
// advances with wall time while playing.
type localTech struct {
	mu        sync.Mutex
	src       Source
	position  float64
	playing   bool
	startedAt time.Time
	now       func() time.Time
}

func newLocalTech(src Source, now func() time.Time) *localTech {
	return &localTech{src: src, now: now}
}

func (t *localTech) Name() string {
	return DefaultTech
}

func (t *localTech) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentTimeLocked()
}

func (t *localTech) currentTimeLocked() float64 {
	if !t.playing {
		return t.position
	}
	return t.position + t.now().Sub(t.startedAt).Seconds()
}

func (t *localTech) SetCurrentTime(seconds float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	t.position = seconds
	t.startedAt = t.now()
	return nil
}

func (t *localTech) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.playing
}

func (t *localTech) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return nil
	}
	t.playing = true
	t.startedAt = t.now()
	return nil
}

func (t *localTech) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return nil
	}
	t.position = t.currentTimeLocked()
	t.playing = false
	return nil
}

func (t *localTech) Dispose() {
	_ = t.Pause()
}
