package devices

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrNoReceivers         = errors.New("devices: no cast receivers available")
	ErrReceiverUnavailable = errors.New("devices: requested receiver not available")
)

// Receiver is a cast receiver found on the local network.
type Receiver struct {
	Name      string
	Addr      string // host:port
	AudioOnly bool
}

// DisplayName is the name shown to users, marking audio-only receivers.
func (r Receiver) DisplayName() string {
	if r.AudioOnly {
		return r.Name + " (Chromecast Audio)"
	}
	return r.Name + " (Chromecast)"
}

// SortReceivers orders receivers by name, then address.
func SortReceivers(rs []Receiver) {
	slices.SortFunc(rs, func(a, b Receiver) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Addr, b.Addr)
	})
}

// Pick returns the nth (1-based) receiver of the sorted list.
func Pick(rs []Receiver, n int) (Receiver, error) {
	if len(rs) == 0 {
		return Receiver{}, ErrNoReceivers
	}
	if n <= 0 || n > len(rs) {
		return Receiver{}, ErrReceiverUnavailable
	}

	sorted := slices.Clone(rs)
	SortReceivers(sorted)
	return sorted[n-1], nil
}

// Find returns the receiver with the given address or friendly name.
func Find(rs []Receiver, target string) (Receiver, error) {
	for _, r := range rs {
		if r.Addr == target || strings.EqualFold(r.Name, target) {
			return r, nil
		}
	}
	return Receiver{}, ErrReceiverUnavailable
}
