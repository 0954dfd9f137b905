package castprotocol

import "go2tv.app/castbutton/castsdk"

// CastStatus represents current Chromecast playback state.
type CastStatus struct {
	AppID       string  // running receiver application, empty when none
	TransportID string  // media channel of the running application
	PlayerState string  // "PLAYING", "PAUSED", "IDLE", "BUFFERING"
	IdleReason  string  // "FINISHED", "CANCELLED", "ERROR" when IDLE
	CurrentTime float32 // Current position in seconds
	Duration    float32 // Total duration in seconds
	Volume      float32 // Volume level (0.0 to 1.0)
	Muted       bool
	MediaTitle  string
	ContentID   string
	ContentType string
}

// State converts the receiver player state.
func (s *CastStatus) State() castsdk.PlayerState {
	switch castsdk.PlayerState(s.PlayerState) {
	case castsdk.PlayerStatePlaying, castsdk.PlayerStatePaused, castsdk.PlayerStateBuffering:
		return castsdk.PlayerState(s.PlayerState)
	default:
		return castsdk.PlayerStateIdle
	}
}
