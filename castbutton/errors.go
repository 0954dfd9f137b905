package castbutton

import (
	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/player"
)

// ErrorClass is how the control reacts to a cast error.
type ErrorClass int

const (
	// Recoverable errors put the control in its error state. It stays usable.
	Recoverable ErrorClass = iota
	// Ignorable errors leave everything as it was.
	Ignorable
	// Fatal errors are reported to the player.
	Fatal
)

func (e ErrorClass) String() string {
	switch e {
	case Recoverable:
		return "recoverable"
	case Ignorable:
		return "ignorable"
	default:
		return "fatal"
	}
}

// Classify maps an SDK error code to its class. Codes the SDK does not
// document are fatal.
func Classify(code castsdk.ErrorCode) ErrorClass {
	switch code {
	case castsdk.ErrorAPINotInitialized,
		castsdk.ErrorExtensionMissing,
		castsdk.ErrorExtensionNotCompatible,
		castsdk.ErrorInvalidParameter,
		castsdk.ErrorLoadMediaFailed,
		castsdk.ErrorReceiverUnavailable,
		castsdk.ErrorSessionError,
		castsdk.ErrorChannelError,
		castsdk.ErrorTimeout:
		return Recoverable
	case castsdk.ErrorCancel:
		return Ignorable
	default:
		return Fatal
	}
}

// castError logs err, applies its class and returns it only when it is
// fatal. prev is the state the failed request started from.
func (c *Controller) castError(method string, err error, prev State) error {
	castErr := castsdk.AsError(err)
	class := Classify(castErr.Code)

	c.Log().Error().
		Str("Method", method).
		Str("Code", string(castErr.Code)).
		Str("Description", castErr.Description).
		Interface("Details", castErr.Details).
		Str("Class", class.String()).
		Err(castErr.Err).
		Msg("cast error")

	c.mu.Lock()
	switch {
	case c.state == StateInitializing:
		_ = c.setStateLocked(StateUninitialized)
	case !c.state.inFlight():
		// the session ended or was picked up again while the request was out
	case class == Ignorable:
		_ = c.setStateLocked(prev)
	default:
		_ = c.setStateLocked(StateError)
	}
	if class == Recoverable {
		c.errored = true
	}
	c.mu.Unlock()
	c.changed()

	if class != Fatal {
		return nil
	}

	c.host.Error(player.MediaError{
		Code:    string(castErr.Code),
		Message: castErr.Description,
	})
	return castErr
}
