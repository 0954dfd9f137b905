package castprotocol

import (
	"fmt"
	"sync/atomic"

	"github.com/vishen/go-chromecast/cast"
	"go2tv.app/castbutton/castsdk"
)

const (
	receiverNamespace = "urn:x-cast:com.google.cast.receiver"
	mediaNamespace    = "urn:x-cast:com.google.cast.media"
	defaultSender     = "sender-0"
	defaultReceiver   = "receiver-0"
)

// Request ID counter for Chromecast messages
var requestIDCounter int32

func nextRequestID() int {
	return int(atomic.AddInt32(&requestIDCounter, 1))
}

// sender is the part of cast.Conn used for custom commands.
type sender interface {
	Send(requestID int, payload cast.Payload, sourceID, destinationID, namespace string) error
}

// launchPayload starts a receiver application.
type launchPayload struct {
	cast.PayloadHeader
	AppID string `json:"appId"`
}

// loadPayload is a LOAD command carrying the full media description:
// tracks, text track style and metadata images included.
type loadPayload struct {
	cast.PayloadHeader
	Media          castsdk.MediaInfo `json:"media"`
	CurrentTime    float64           `json:"currentTime"`
	Autoplay       bool              `json:"autoplay"`
	ActiveTrackIDs []int             `json:"activeTrackIds,omitempty"`
}

var (
	_ cast.Payload = (*launchPayload)(nil)
	_ cast.Payload = (*loadPayload)(nil)
)

func newLoadPayload(req castsdk.LoadRequest) *loadPayload {
	return &loadPayload{
		PayloadHeader:  cast.LoadHeader,
		Media:          req.Media,
		CurrentTime:    req.CurrentTime,
		Autoplay:       req.Autoplay,
		ActiveTrackIDs: req.ActiveTrackIDs,
	}
}

// launchReceiver asks the platform receiver to start appID.
func launchReceiver(conn sender, appID string) error {
	payload := &launchPayload{
		PayloadHeader: cast.LaunchHeader,
		AppID:         appID,
	}

	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, defaultSender, defaultReceiver, receiverNamespace); err != nil {
		return fmt.Errorf("send launch %s: %w", appID, err)
	}
	return nil
}

// sendLoad sends a LOAD command to the media channel of transportID.
func sendLoad(conn sender, transportID string, req castsdk.LoadRequest) error {
	payload := newLoadPayload(req)

	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, defaultSender, transportID, mediaNamespace); err != nil {
		return fmt.Errorf("send load: %w", err)
	}
	return nil
}
