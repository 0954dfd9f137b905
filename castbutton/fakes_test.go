package castbutton

import (
	"context"
	"sync"

	"go2tv.app/castbutton/castsdk"
)

type fakeMedia struct {
	mu    sync.Mutex
	id    string
	time  float64
	state castsdk.PlayerState
}

func (m *fakeMedia) ContentID() string { return m.id }

func (m *fakeMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

func (m *fakeMedia) PlayerState() castsdk.PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *fakeMedia) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = castsdk.PlayerStatePlaying
	return nil
}

func (m *fakeMedia) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = castsdk.PlayerStatePaused
	return nil
}

func (m *fakeMedia) Seek(ctx context.Context, seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time = seconds
	return nil
}

type fakeSession struct {
	mu        sync.Mutex
	id        string
	receiver  string
	running   []castsdk.Media
	remote    *fakeMedia
	loadErr   error
	stopErr   error
	loaded    []castsdk.LoadRequest
	listeners []func(bool)
	stops     int
	// dead makes the session report itself gone to every new listener.
	dead bool
}

func (s *fakeSession) ID() string           { return s.id }
func (s *fakeSession) ReceiverName() string { return s.receiver }

func (s *fakeSession) Media() []castsdk.Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeSession) LoadMedia(ctx context.Context, req castsdk.LoadRequest) (castsdk.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, req)
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	s.running = []castsdk.Media{s.remote}
	return s.remote, nil
}

func (s *fakeSession) AddUpdateListener(fn func(bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	dead := s.dead
	s.mu.Unlock()
	if dead {
		fn(false)
	}
}

func (s *fakeSession) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return s.stopErr
}

func (s *fakeSession) update(alive bool) {
	s.mu.Lock()
	ls := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(alive)
	}
}

type fakeSDK struct {
	mu sync.Mutex

	// availableOn is the IsAvailable call that first returns true; 0 never.
	availableOn int
	checks      int

	initErr   error
	initCalls int
	cfg       castsdk.APIConfig

	session      *fakeSession
	requestErr   error
	requestCalls int
	// block, when set, holds RequestSession until it is closed.
	block chan struct{}
}

func (f *fakeSDK) IsAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.availableOn > 0 && f.checks >= f.availableOn
}

func (f *fakeSDK) Initialize(ctx context.Context, cfg castsdk.APIConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.cfg = cfg
	return f.initErr
}

func (f *fakeSDK) RequestSession(ctx context.Context) (castsdk.Session, error) {
	f.mu.Lock()
	f.requestCalls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return f.session, nil
}

func (f *fakeSDK) counts() (checks, inits, requests int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.initCalls, f.requestCalls
}
