package devices

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const (
	// CapabilityVideoOut is the bitmask for video output capability (bit 0)
	CapabilityVideoOut = 1

	googlecastService = "_googlecast._tcp"
	// mDNS query timeout per request
	chromecastQueryTimeout = 750 * time.Millisecond
	// Faster polling while nothing is known for quick first discovery
	chromecastPollIntervalFast = 1 * time.Second
	// Slower polling once at least one receiver is known
	chromecastPollIntervalSlow = 4 * time.Second
	healthCheckInterval        = 5 * time.Second
)

var (
	mdnsQuery       = mdns.QueryContext
	hostPortIsAlive = HostPortIsAlive
)

// Discovery browses the network for cast receivers over mDNS and keeps a
// health-checked cache of them.
type Discovery struct {
	mu          sync.Mutex
	receivers   map[string]Receiver
	subscribers []func(bool)
	browsed     bool

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// NewDiscovery returns an empty Discovery. Call Start to begin browsing.
func NewDiscovery() *Discovery {
	return &Discovery{
		receivers: make(map[string]Receiver),
		Logger:    zerolog.Nop(),
	}
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (d *Discovery) Log() *zerolog.Logger {
	if d.LogOutput != nil {
		d.initLogOnce.Do(func() {
			d.Logger = zerolog.New(d.LogOutput).With().Timestamp().Str("Component", "devices").Logger()
		})
	}
	return &d.Logger
}

// Start runs discovery and health checking until ctx is canceled.
func (d *Discovery) Start(ctx context.Context) {
	go d.discover(ctx)
	go d.healthCheck(ctx)
}

// Subscribe registers fn to be called with the new availability every time
// the cache goes from empty to non-empty or back.
func (d *Discovery) Subscribe(fn func(available bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// Ready reports whether at least one browse of the network completed.
func (d *Discovery) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.browsed
}

// Receivers returns the known receivers sorted by name.
func (d *Discovery) Receivers() []Receiver {
	d.mu.Lock()
	out := make([]Receiver, 0, len(d.receivers))
	for _, r := range d.receivers {
		out = append(out, r)
	}
	d.mu.Unlock()

	SortReceivers(out)
	return out
}

// query sends one mDNS query per interface, or one on the default interface
// when there are none, and stores the answers. A canceled ctx cuts the
// queries short and the browse does not count.
func (d *Discovery) query(ctx context.Context, interfaces []net.Interface) {
	entriesCh := make(chan *mdns.ServiceEntry, 256)
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		for entry := range entriesCh {
			d.upsert(entry)
		}
	}()

	queryIface := func(iface *net.Interface) {
		params := mdns.DefaultParams(googlecastService)
		params.Entries = entriesCh
		params.Timeout = chromecastQueryTimeout
		params.DisableIPv6 = true
		params.WantUnicastResponse = true
		params.Logger = log.New(io.Discard, "", 0)
		params.Interface = iface
		if err := mdnsQuery(ctx, params); err != nil {
			d.Log().Debug().Str("Method", "query").Err(err).Msg("mdns query failed")
		}
	}

	if len(interfaces) > 0 {
		var wg sync.WaitGroup
		for _, iface := range interfaces {
			wg.Add(1)
			go func(iface net.Interface) {
				defer wg.Done()
				queryIface(&iface)
			}(iface)
		}
		wg.Wait()
	} else {
		queryIface(nil)
	}

	close(entriesCh)
	<-doneCh

	if ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	d.browsed = true
	d.mu.Unlock()
}

func (d *Discovery) discover(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		d.query(ctx, getActiveNetworkInterfaces())
		timer.Reset(d.pollInterval())
	}
}

func (d *Discovery) pollInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.receivers) > 0 {
		return chromecastPollIntervalSlow
	}
	return chromecastPollIntervalFast
}

// upsert stores a receiver from an mDNS answer. Answers for other services
// or without an IPv4 address are dropped.
func (d *Discovery) upsert(entry *mdns.ServiceEntry) {
	r, ok := receiverFromEntry(entry)
	if !ok {
		return
	}

	d.mu.Lock()
	wasEmpty := len(d.receivers) == 0
	_, known := d.receivers[r.Addr]
	d.receivers[r.Addr] = r
	d.mu.Unlock()

	if !known {
		d.Log().Debug().Str("Method", "upsert").Str("Name", r.Name).Str("Addr", r.Addr).Bool("AudioOnly", r.AudioOnly).Msg("receiver found")
	}
	if wasEmpty {
		d.notify(true)
	}
}

// remove drops addr from the cache.
func (d *Discovery) remove(addr string) {
	d.mu.Lock()
	_, known := d.receivers[addr]
	delete(d.receivers, addr)
	nowEmpty := known && len(d.receivers) == 0
	d.mu.Unlock()

	if known {
		d.Log().Debug().Str("Method", "remove").Str("Addr", addr).Msg("receiver gone")
	}
	if nowEmpty {
		d.notify(false)
	}
}

func (d *Discovery) notify(available bool) {
	d.mu.Lock()
	subs := append([]func(bool){}, d.subscribers...)
	d.mu.Unlock()
	for _, fn := range subs {
		fn(available)
	}
}

func receiverFromEntry(entry *mdns.ServiceEntry) (Receiver, bool) {
	if entry == nil || entry.AddrV4 == nil {
		return Receiver{}, false
	}
	if !strings.Contains(entry.Name, "_googlecast") {
		return Receiver{}, false
	}

	r := Receiver{
		Name: entry.Name,
		Addr: fmt.Sprintf("%s:%d", entry.AddrV4, entry.Port),
	}

	for _, txt := range entry.InfoFields {
		if after, ok := strings.CutPrefix(txt, "fn="); ok {
			r.Name = after
			break
		}
	}

	if idx := strings.Index(r.Name, "._googlecast"); idx > 0 {
		r.Name = r.Name[:idx]
	}

	for _, txt := range entry.InfoFields {
		if after, ok := strings.CutPrefix(txt, "ca="); ok {
			r.AudioOnly = isChromecastAudioOnly(after)
			break
		}
	}

	return r, true
}

// healthCheck periodically removes receivers that stopped answering.
func (d *Discovery) healthCheck(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkAlive()
		}
	}
}

func (d *Discovery) checkAlive() {
	d.mu.Lock()
	addrs := make([]string, 0, len(d.receivers))
	for addr := range d.receivers {
		addrs = append(addrs, addr)
	}
	d.mu.Unlock()

	for _, addr := range addrs {
		if !hostPortIsAlive(addr) {
			d.remove(addr)
		}
	}
}

// getActiveNetworkInterfaces returns all network interfaces that are up,
// multicast-capable, not loopback, and have an IPv4 address.
func getActiveNetworkInterfaces() []net.Interface {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var active []net.Interface
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				active = append(active, iface)
				break
			}
		}
	}

	return active
}

// HostPortIsAlive checks if a receiver at the given address accepts TCP
// connections within 2 seconds.
func HostPortIsAlive(address string) bool {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// isChromecastAudioOnly reads the "ca" TXT bitmask. A receiver without the
// video out bit is audio-only; unparsable values are treated as video.
func isChromecastAudioOnly(caField string) bool {
	ca, err := strconv.Atoi(caField)
	if err != nil {
		return false
	}
	return (ca & CapabilityVideoOut) == 0
}
