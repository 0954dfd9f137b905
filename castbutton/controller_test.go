package castbutton

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/casttech"
	"go2tv.app/castbutton/player"
)

var testSources = []player.Source{
	{Src: "http://192.168.1.10:3500/movie.mp4", Type: "video/mp4"},
	{Src: "http://192.168.1.10:3500/movie.webm", Type: "video/webm"},
}

func newTestPlayer(t *testing.T) *player.Player {
	t.Helper()
	p := player.New(player.Options{
		Sources:           testSources,
		Poster:            "http://192.168.1.10:3500/poster.jpg",
		InactivityTimeout: 3 * time.Second,
		Origin:            "http://192.168.1.10:3500",
		TextTracks: []player.TextTrack{
			{ID: "en-sub", Src: "/en.vtt", Label: "English", Language: "en"},
		},
	})
	casttech.Register(p)
	if err := p.Load(); err != nil {
		t.Fatalf("Load() err = %v, want nil", err)
	}
	return p
}

func newTestSession() *fakeSession {
	return &fakeSession{
		id:       "session-1",
		receiver: "Living Room",
		remote:   &fakeMedia{id: "http://192.168.1.10:3500/movie.mp4", time: 95, state: castsdk.PlayerStatePlaying},
	}
}

func initializedController(t *testing.T, p player.Host, sdk *fakeSDK) *Controller {
	t.Helper()
	c := NewController(p, sdk, DefaultOptions())
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() err = %v, want nil", err)
	}
	c.OnReceiverAvailabilityChanged(castsdk.ReceiverAvailable)
	return c
}

func TestInitializeConfiguresSDK(t *testing.T) {
	p := newTestPlayer(t)
	sdk := &fakeSDK{availableOn: 1}
	c := NewController(p, sdk, Options{})

	if c.ButtonState() != ButtonHidden {
		t.Fatalf("ButtonState() = %s before availability, want hidden", c.ButtonState())
	}

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() err = %v, want nil", err)
	}
	if c.State() != StateReady || !c.APIInitialized() {
		t.Fatalf("after Initialize state = %s initialized = %v, want ready/true", c.State(), c.APIInitialized())
	}
	if sdk.cfg.SessionRequest.AppID != castsdk.DefaultMediaReceiverAppID {
		t.Fatalf("AppID = %q, want default receiver", sdk.cfg.SessionRequest.AppID)
	}
	if sdk.cfg.SessionListener == nil || sdk.cfg.ReceiverListener == nil {
		t.Fatalf("APIConfig listeners not set")
	}
	if sdk.cfg.AutoJoinPolicy != castsdk.AutoJoinTabAndOriginScoped || sdk.cfg.DefaultActionPolicy != castsdk.DefaultActionCastThisTab {
		t.Fatalf("policies = %s/%s", sdk.cfg.AutoJoinPolicy, sdk.cfg.DefaultActionPolicy)
	}

	sdk.cfg.ReceiverListener(castsdk.ReceiverAvailable)
	if c.ButtonState() != ButtonIdle {
		t.Fatalf("ButtonState() = %s after availability, want idle", c.ButtonState())
	}

	// a second call does not initialize again
	_ = c.Initialize(context.Background())
	if _, inits, _ := sdk.counts(); inits != 1 {
		t.Fatalf("Initialize reached the SDK %d times, want 1", inits)
	}
}

func TestInitializeFailure(t *testing.T) {
	p := newTestPlayer(t)
	sdk := &fakeSDK{initErr: castsdk.NewError(castsdk.ErrorExtensionMissing, "no extension", nil)}
	c := NewController(p, sdk, Options{})

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() err = %v, want nil for recoverable error", err)
	}
	if c.State() != StateUninitialized || c.APIInitialized() {
		t.Fatalf("state = %s initialized = %v, want uninitialized/false", c.State(), c.APIInitialized())
	}
	if err := c.Launch(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Launch() err = %v, want ErrNotInitialized", err)
	}
}

func TestLaunchNotInitialized(t *testing.T) {
	p := newTestPlayer(t)
	sdk := &fakeSDK{session: newTestSession()}
	c := NewController(p, sdk, Options{})

	if err := c.Launch(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Launch() err = %v, want ErrNotInitialized", err)
	}
	if c.State() != StateUninitialized {
		t.Fatalf("State() = %s, want uninitialized", c.State())
	}
	if _, _, requests := sdk.counts(); requests != 0 {
		t.Fatalf("RequestSession called %d times, want 0", requests)
	}
}

func TestLaunchAndStopRestoresLocalPlayback(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.SetCurrentTime(12); err != nil {
		t.Fatalf("SetCurrentTime() err = %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play() err = %v", err)
	}

	sess := newTestSession()
	sdk := &fakeSDK{session: sess}
	c := initializedController(t, p, sdk)

	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() err = %v, want nil", err)
	}

	if c.State() != StateCasting || !c.Casting() || c.ButtonState() != ButtonCasting {
		t.Fatalf("after Launch state = %s casting = %v button = %s", c.State(), c.Casting(), c.ButtonState())
	}
	if p.TechName() != casttech.Name {
		t.Fatalf("TechName() = %q, want %q", p.TechName(), casttech.Name)
	}
	if p.InactivityTimeout() != 0 || !p.IsUserActive() {
		t.Fatalf("inactivity = %v userActive = %v, want 0/true", p.InactivityTimeout(), p.IsUserActive())
	}
	if !slices.Contains(c.Classes(), "connected") {
		t.Fatalf("Classes() = %v, want connected", c.Classes())
	}

	if len(sess.loaded) != 1 {
		t.Fatalf("LoadMedia called %d times, want 1", len(sess.loaded))
	}
	req := sess.loaded[0]
	if !req.Autoplay || req.CurrentTime < 12 || req.CurrentTime > 13 {
		t.Fatalf("load request autoplay = %v currentTime = %v, want true/~12", req.Autoplay, req.CurrentTime)
	}
	if req.Media.ContentID != testSources[0].Src || req.Media.ContentType != "video/mp4" {
		t.Fatalf("load request media = %q %q", req.Media.ContentID, req.Media.ContentType)
	}
	if len(req.Media.Tracks) != 1 || req.Media.Tracks[0].TrackContentID != "http://192.168.1.10:3500/en.vtt" {
		t.Fatalf("load request tracks = %+v", req.Media.Tracks)
	}

	// receiver moved on while casting
	sess.remote.Seek(context.Background(), 95)

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() err = %v, want nil", err)
	}

	if sess.stops != 1 {
		t.Fatalf("session Stop called %d times, want 1", sess.stops)
	}
	if c.State() != StateReady || c.Casting() || c.Session() != nil {
		t.Fatalf("after Stop state = %s casting = %v session = %v", c.State(), c.Casting(), c.Session())
	}
	if c.ButtonState() != ButtonIdle {
		t.Fatalf("ButtonState() = %s, want idle", c.ButtonState())
	}
	if p.TechName() != player.DefaultTech {
		t.Fatalf("TechName() = %q, want %q", p.TechName(), player.DefaultTech)
	}
	if got := p.Sources(); !slices.Equal(got, testSources) {
		t.Fatalf("Sources() = %v, want %v", got, testSources)
	}
	if got := p.CurrentTime(); got < 95 || got > 96 {
		t.Fatalf("CurrentTime() = %v, want ~95", got)
	}
	if p.Paused() {
		t.Fatalf("Paused() = true, want local playback resumed")
	}
	if p.InactivityTimeout() != 3*time.Second {
		t.Fatalf("InactivityTimeout() = %v, want 3s", p.InactivityTimeout())
	}

	snap := c.LastRestore()
	if snap.CurrentTime != 95 || !snap.WasPlaying || snap.InactivityTimeout != 3*time.Second {
		t.Fatalf("LastRestore() = %+v", snap)
	}
}

func TestStopKeepsPausedPlayerPaused(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	sess.remote.state = castsdk.PlayerStatePaused
	c := initializedController(t, p, &fakeSDK{session: sess})

	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() err = %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() err = %v", err)
	}
	if !p.Paused() {
		t.Fatalf("Paused() = false, want paused like the receiver was")
	}
}

func TestStopWithoutSession(t *testing.T) {
	p := newTestPlayer(t)
	c := initializedController(t, p, &fakeSDK{})
	if err := c.Stop(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Stop() err = %v, want ErrNoSession", err)
	}
}

func TestStopFailureKeepsCasting(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	sess.stopErr = castsdk.NewError(castsdk.ErrorChannelError, "channel closed", nil)
	c := initializedController(t, p, &fakeSDK{session: sess})

	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() err = %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() err = %v, want nil for recoverable error", err)
	}
	if c.State() != StateError || !c.Casting() || c.ButtonState() != ButtonError {
		t.Fatalf("state = %s casting = %v button = %s, want error/true/error", c.State(), c.Casting(), c.ButtonState())
	}

	// the user retries by clicking again
	sess.stopErr = nil
	if err := NewButton(c).HandleClick(context.Background()); err != nil {
		t.Fatalf("HandleClick() err = %v", err)
	}
	if c.State() != StateReady || c.Casting() {
		t.Fatalf("state = %s casting = %v, want ready/false", c.State(), c.Casting())
	}
}

func TestCastErrorClasses(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantState   State
		wantButton  ButtonState
		wantPlayer  bool
		wantReturns bool
	}{
		{
			name:       "cancel changes nothing",
			err:        castsdk.NewError(castsdk.ErrorCancel, "dialog dismissed", nil),
			wantState:  StateReady,
			wantButton: ButtonIdle,
		},
		{
			name:       "timeout shows error",
			err:        castsdk.NewError(castsdk.ErrorTimeout, "receiver did not answer", nil),
			wantState:  StateError,
			wantButton: ButtonError,
		},
		{
			name:       "receiver unavailable shows error",
			err:        castsdk.NewError(castsdk.ErrorReceiverUnavailable, "", nil),
			wantState:  StateError,
			wantButton: ButtonError,
		},
		{
			name:        "unknown code is fatal",
			err:         castsdk.NewError("weird_code", "something odd", nil),
			wantState:   StateError,
			wantButton:  ButtonIdle,
			wantPlayer:  true,
			wantReturns: true,
		},
		{
			name:        "plain error is fatal",
			err:         errors.New("socket exploded"),
			wantState:   StateError,
			wantButton:  ButtonIdle,
			wantPlayer:  true,
			wantReturns: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlayer(t)
			sdk := &fakeSDK{requestErr: tt.err}
			var logs bytes.Buffer
			c := NewController(p, sdk, Options{})
			c.LogOutput = &logs
			_ = c.Initialize(context.Background())
			c.OnReceiverAvailabilityChanged(castsdk.ReceiverAvailable)

			err := c.Launch(context.Background())
			if (err != nil) != tt.wantReturns {
				t.Fatalf("Launch() err = %v, want returned = %v", err, tt.wantReturns)
			}
			if c.State() != tt.wantState {
				t.Fatalf("State() = %s, want %s", c.State(), tt.wantState)
			}
			if c.ButtonState() != tt.wantButton {
				t.Fatalf("ButtonState() = %s, want %s", c.ButtonState(), tt.wantButton)
			}

			perr := p.LastError()
			if (perr != nil) != tt.wantPlayer {
				t.Fatalf("player error = %v, want reported = %v", perr, tt.wantPlayer)
			}
			if perr != nil {
				want := castsdk.AsError(tt.err)
				if perr.Code != string(want.Code) || perr.Message != want.Description {
					t.Fatalf("player error = %+v, want code %q message %q", perr, want.Code, want.Description)
				}
			}

			code := string(castsdk.AsError(tt.err).Code)
			if !strings.Contains(logs.String(), `"Code":"`+code+`"`) {
				t.Fatalf("log %q does not carry code %q", logs.String(), code)
			}
		})
	}
}

func TestCancelFromErrorStateStaysInError(t *testing.T) {
	p := newTestPlayer(t)
	sdk := &fakeSDK{requestErr: castsdk.NewError(castsdk.ErrorTimeout, "", nil)}
	c := initializedController(t, p, sdk)

	_ = c.Launch(context.Background())
	sdk.requestErr = castsdk.NewError(castsdk.ErrorCancel, "", nil)
	_ = c.Launch(context.Background())

	if c.State() != StateError || c.ButtonState() != ButtonError {
		t.Fatalf("state = %s button = %s, want error/error", c.State(), c.ButtonState())
	}
}

func TestLoadMediaFailure(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	sess.loadErr = castsdk.NewError(castsdk.ErrorLoadMediaFailed, "unsupported codec", nil)
	c := initializedController(t, p, &fakeSDK{session: sess})

	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() err = %v, want nil", err)
	}
	if c.State() != StateError || c.Session() != nil || c.Casting() {
		t.Fatalf("state = %s session = %v casting = %v", c.State(), c.Session(), c.Casting())
	}
	if p.TechName() != player.DefaultTech {
		t.Fatalf("TechName() = %q, want local tech kept", p.TechName())
	}

	// a later successful launch clears the error marker
	sess.loadErr = nil
	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() err = %v", err)
	}
	if c.ButtonState() != ButtonCasting || slices.Contains(c.Classes(), "error") {
		t.Fatalf("ButtonState() = %s classes = %v, want casting without error", c.ButtonState(), c.Classes())
	}
}

func TestLaunchWhileRequestingIsBusy(t *testing.T) {
	p := newTestPlayer(t)
	block := make(chan struct{})
	sdk := &fakeSDK{session: newTestSession(), block: block}
	c := initializedController(t, p, sdk)

	done := make(chan error, 1)
	go func() { done <- c.Launch(context.Background()) }()

	waitFor(t, func() bool { return c.State() == StateRequesting })

	if err := c.Launch(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Launch() err = %v, want ErrBusy", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("Launch() err = %v", err)
	}
	if _, _, requests := sdk.counts(); requests != 1 {
		t.Fatalf("RequestSession called %d times, want 1", requests)
	}
}

func TestRejoinWithMediaSkipsRequest(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	sess.running = []castsdk.Media{sess.remote}
	sdk := &fakeSDK{}
	c := initializedController(t, p, sdk)

	sdk.cfg.SessionListener(sess)

	if _, _, requests := sdk.counts(); requests != 0 {
		t.Fatalf("RequestSession called %d times, want 0", requests)
	}
	if c.State() != StateCasting || c.ButtonState() != ButtonCasting || c.Session() != sess {
		t.Fatalf("state = %s button = %s", c.State(), c.ButtonState())
	}
	if !slices.Contains(c.Classes(), "connected") {
		t.Fatalf("Classes() = %v, want connected", c.Classes())
	}
	if p.TechName() != casttech.Name {
		t.Fatalf("TechName() = %q, want %q", p.TechName(), casttech.Name)
	}
}

func TestRejoinOfDyingSessionRestoresLocalPlayback(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	sess.running = []castsdk.Media{sess.remote}
	sess.dead = true
	sdk := &fakeSDK{}
	c := initializedController(t, p, sdk)

	sdk.cfg.SessionListener(sess)

	if c.State() != StateReady || c.Casting() || c.Session() != nil {
		t.Fatalf("state = %s casting = %v session = %v, want ready without session", c.State(), c.Casting(), c.Session())
	}
	if p.TechName() != player.DefaultTech {
		t.Fatalf("TechName() = %q, want %q", p.TechName(), player.DefaultTech)
	}
}

func TestTechLoadFailureReleasesSession(t *testing.T) {
	// No cast tech registered: the handoff cannot load it.
	p := player.New(player.Options{Sources: testSources, Origin: "http://192.168.1.10:3500"})
	if err := p.Load(); err != nil {
		t.Fatalf("Load() err = %v, want nil", err)
	}
	sess := newTestSession()
	c := initializedController(t, p, &fakeSDK{session: sess})

	if err := c.Launch(context.Background()); err == nil {
		t.Fatalf("Launch() err = nil, want tech load error")
	}
	if got := sess.stopCount(); got != 1 {
		t.Fatalf("session Stop() calls = %d, want 1", got)
	}
	if c.State() != StateError || c.Session() != nil || c.Casting() {
		t.Fatalf("state = %s session = %v casting = %v", c.State(), c.Session(), c.Casting())
	}
	if e := p.LastError(); e == nil || e.Code != "tech_load_failed" {
		t.Fatalf("LastError() = %v, want tech_load_failed", e)
	}
}

func TestRejoinWithoutMediaIgnored(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	c := initializedController(t, p, &fakeSDK{})

	c.OnSessionRejoined(sess)

	if c.State() != StateReady || c.Session() != nil {
		t.Fatalf("state = %s session = %v, want ready/nil", c.State(), c.Session())
	}
}

func TestSessionDeathRestoresLocalPlayback(t *testing.T) {
	p := newTestPlayer(t)
	sess := newTestSession()
	c := initializedController(t, p, &fakeSDK{session: sess})

	if err := c.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() err = %v", err)
	}

	sess.update(true)
	if c.State() != StateCasting {
		t.Fatalf("State() = %s after alive update, want casting", c.State())
	}

	sess.update(false)
	if c.State() != StateReady || c.Casting() || c.Session() != nil {
		t.Fatalf("state = %s casting = %v, want ready/false", c.State(), c.Casting())
	}
	if sess.stops != 0 {
		t.Fatalf("session Stop called %d times on a dead session, want 0", sess.stops)
	}
	if p.TechName() != player.DefaultTech || p.InactivityTimeout() != 3*time.Second {
		t.Fatalf("tech = %q inactivity = %v", p.TechName(), p.InactivityTimeout())
	}
}

func TestStaleSessionUpdateIgnored(t *testing.T) {
	p := newTestPlayer(t)
	first := newTestSession()
	sdk := &fakeSDK{session: first}
	c := initializedController(t, p, sdk)

	_ = c.Launch(context.Background())
	_ = c.Stop(context.Background())

	second := newTestSession()
	second.id = "session-2"
	sdk.session = second
	_ = c.Launch(context.Background())

	first.update(false)
	if c.Session() != second || c.State() != StateCasting {
		t.Fatalf("stale update ended the new session: state = %s", c.State())
	}
}

func TestUpdateWithoutMediaIgnored(t *testing.T) {
	p := newTestPlayer(t)
	c := initializedController(t, p, &fakeSDK{})
	c.OnSessionUpdate(false)
	if c.State() != StateReady {
		t.Fatalf("State() = %s, want ready", c.State())
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateUninitialized, StateInitializing, true},
		{StateInitializing, StateReady, true},
		{StateReady, StateRequesting, true},
		{StateRequesting, StateCasting, true},
		{StateCasting, StateStopping, true},
		{StateStopping, StateReady, true},
		{StateRequesting, StateError, true},
		{StateCasting, StateError, true},
		{StateReady, StateStopping, false},
		{StateUninitialized, StateRequesting, false},
		{StateCasting, StateRequesting, false},
		{StateReady, StateReady, true},
	}

	for _, tt := range tests {
		got, err := next(tt.from, tt.to)
		if tt.ok && (err != nil || got != tt.to) {
			t.Fatalf("next(%s, %s) = %s, %v, want %s", tt.from, tt.to, got, err, tt.to)
		}
		if !tt.ok && (!errors.Is(err, ErrInvalidTransition) || got != tt.from) {
			t.Fatalf("next(%s, %s) = %s, %v, want ErrInvalidTransition", tt.from, tt.to, got, err)
		}
	}
}

func TestClassify(t *testing.T) {
	recoverable := []castsdk.ErrorCode{
		castsdk.ErrorAPINotInitialized, castsdk.ErrorExtensionMissing, castsdk.ErrorExtensionNotCompatible,
		castsdk.ErrorInvalidParameter, castsdk.ErrorLoadMediaFailed, castsdk.ErrorReceiverUnavailable,
		castsdk.ErrorSessionError, castsdk.ErrorChannelError, castsdk.ErrorTimeout,
	}
	for _, code := range recoverable {
		if Classify(code) != Recoverable {
			t.Fatalf("Classify(%s) = %s, want recoverable", code, Classify(code))
		}
	}
	if Classify(castsdk.ErrorCancel) != Ignorable {
		t.Fatalf("Classify(cancel) = %s, want ignorable", Classify(castsdk.ErrorCancel))
	}
	for _, code := range []castsdk.ErrorCode{castsdk.ErrorUnknown, "", "quota_exceeded"} {
		if Classify(code) != Fatal {
			t.Fatalf("Classify(%q) = %s, want fatal", code, Classify(code))
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
