package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go2tv.app/castbutton/castbutton"
	"go2tv.app/castbutton/castprotocol"
	"go2tv.app/castbutton/casttech"
	"go2tv.app/castbutton/devices"
	"go2tv.app/castbutton/httphandlers"
	"go2tv.app/castbutton/internal/config"
	"go2tv.app/castbutton/internal/interactive"
	"go2tv.app/castbutton/player"
	"go2tv.app/castbutton/utils"
	"golang.org/x/mod/semver"
)

// routeProbe is dialed to find the LAN address when no receiver is known yet.
const routeProbe = "224.0.0.251:5353"

var (
	version     string
	mediaArg    = flag.String("v", "", "Local path or HTTP URL of the video/audio file.")
	subsArg     = flag.String("s", "", "Local path to the subtitles file (.srt or .vtt).")
	posterArg   = flag.String("p", "", "Local path or HTTP URL of the poster image.")
	titleArg    = flag.String("title", "", "Media title shown on the receiver.")
	targetPtr   = flag.String("t", "", "Cast to a specific Chromecast, by name or host:port.")
	listPtr     = flag.Bool("l", false, "List all available Chromecast receivers.")
	versionPtr  = flag.Bool("version", false, "Print version.")
	discoverFor = 5 * time.Second

	errNoCombi = errors.New("can't combine -l with other flags")
)

func main() {
	exitCTX, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flag.Parse()

	exit, err := checkflags()
	check(err)
	if exit {
		os.Exit(0)
	}

	logs, err := openLog()
	check(err)
	defer logs.Close()

	cfg, err := config.GetAppConfig()
	check(err)

	opts, err := castbutton.DecodeOptions(cfg.Plugin)
	check(err)

	timeout, err := cfg.Timeout(player.DefaultInactivityTimeout)
	check(err)

	discovery := devices.NewDiscovery()
	discovery.LogOutput = logs
	discovery.Start(exitCTX)

	target := *targetPtr
	if target == "" {
		target = cfg.Receiver
	}

	whereToListen, err := utils.URLtoListenIPandPort(routeTarget(exitCTX, discovery, target))
	check(err)

	s := httphandlers.NewServer(whereToListen)
	s.LogOutput = logs
	serverStarted := make(chan error)
	go s.StartServer(serverStarted)
	check(<-serverStarted)
	defer s.StopServer()

	prefix, err := utils.RandomString()
	check(err)
	prefix = "/" + prefix + "/"

	sources, title, err := mediaSources(exitCTX, s, prefix)
	check(err)
	if *titleArg != "" {
		title = *titleArg
	}

	poster, err := servePoster(exitCTX, s, prefix)
	check(err)

	tracks, err := serveSubtitles(s, prefix)
	check(err)

	p := player.New(player.Options{
		Sources:           sources,
		Poster:            poster,
		TextTracks:        tracks,
		InactivityTimeout: timeout,
		Origin:            s.URL(""),
	})
	p.LogOutput = logs
	casttech.Register(p)

	scr, err := interactive.InitPlayerScreen(exitCTX, cancel, p, nil)
	check(err)

	sdk := castprotocol.NewSDK(discovery)
	sdk.LogOutput = logs
	sdk.Rejoin = target
	sdk.Picker = picker(target, &interactive.Picker{Screen: scr.Current})

	if opts.Metadata == nil {
		opts.Metadata = map[string]any{}
	}
	if _, ok := opts.Metadata["title"]; !ok {
		opts.Metadata["title"] = title
	}

	plugin := castbutton.Register(exitCTX, p, sdk, opts)
	plugin.Controller().LogOutput = logs
	scr.Plugin = plugin

	check(p.Load())

	screenErr := make(chan error, 1)
	go func() {
		scr.InterInit(title, screenErr)
		cancel()
	}()

	select {
	case err := <-screenErr:
		check(err)
	case <-exitCTX.Done():
	}

	if plugin.Controller().Casting() {
		ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = plugin.Controller().Stop(ctx)
		stop()
	}
}

func check(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
		os.Exit(1)
	}
}

func openLog() (io.WriteCloser, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "openLog error")
	}

	dir = filepath.Join(dir, "castbutton")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "openLog error")
	}

	f, err := os.OpenFile(filepath.Join(dir, "castbutton.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "openLog error")
	}
	return f, nil
}

// waitReady blocks until the first network browse finished.
func waitReady(ctx context.Context, d *devices.Discovery) {
	ctx, cancel := context.WithTimeout(ctx, discoverFor)
	defer cancel()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !d.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// routeTarget is the address the media server must be reachable from.
func routeTarget(ctx context.Context, d *devices.Discovery, target string) string {
	waitReady(ctx, d)
	rs := d.Receivers()

	if target != "" {
		if r, err := devices.Find(rs, target); err == nil {
			return r.Addr
		}
		if strings.Contains(target, ":") {
			return target
		}
	}

	if len(rs) > 0 {
		return rs[0].Addr
	}
	return routeProbe
}

// picker preselects target, falling back to fallback when it is not found.
func picker(target string, fallback *interactive.Picker) castprotocol.Picker {
	return func(ctx context.Context, rs []devices.Receiver) (devices.Receiver, error) {
		if target != "" {
			if r, err := devices.Find(rs, target); err == nil {
				return r, nil
			}
		}
		if len(rs) == 1 {
			return rs[0], nil
		}
		return fallback.Pick(ctx, rs)
	}
}

// mediaSources serves a local media file, or points at a remote one.
func mediaSources(ctx context.Context, s *httphandlers.HTTPserver, prefix string) ([]player.Source, string, error) {
	mediaType, err := utils.MediaType(ctx, *mediaArg)
	if err != nil {
		return nil, "", errors.Wrap(err, "media type error")
	}

	if utils.IsURL(*mediaArg) {
		return []player.Source{{Src: *mediaArg, Type: mediaType}}, filepath.Base(*mediaArg), nil
	}

	abs, err := filepath.Abs(*mediaArg)
	if err != nil {
		return nil, "", errors.Wrap(err, "media path error")
	}

	s.AddHandler(prefix+filepath.Base(abs), mediaType, abs)
	return []player.Source{{Src: s.URL(prefix + utils.ConvertFilename(abs)), Type: mediaType}}, filepath.Base(abs), nil
}

func servePoster(ctx context.Context, s *httphandlers.HTTPserver, prefix string) (string, error) {
	if *posterArg == "" || utils.IsURL(*posterArg) {
		return *posterArg, nil
	}

	abs, err := filepath.Abs(*posterArg)
	if err != nil {
		return "", errors.Wrap(err, "poster path error")
	}

	mediaType, err := utils.MediaType(ctx, abs)
	if err != nil {
		return "", errors.Wrap(err, "poster type error")
	}

	// Handlers match the decoded request path.
	s.AddHandler(prefix+filepath.Base(abs), mediaType, abs)
	return s.URL(prefix + utils.ConvertFilename(abs)), nil
}

// serveSubtitles converts the subtitles to WebVTT and serves them. The track
// source is relative so the cast request resolves it against the origin.
func serveSubtitles(s *httphandlers.HTTPserver, prefix string) ([]player.TextTrack, error) {
	if *subsArg == "" {
		return nil, nil
	}

	vtt, err := utils.LoadSubtitles(*subsArg)
	if err != nil {
		return nil, errors.Wrap(err, "subtitles error")
	}

	path := prefix + "subtitles.vtt"
	s.AddHandler(path, "text/vtt", vtt)
	return []player.TextTrack{{
		ID:    "subtitles",
		Src:   path,
		Label: strings.TrimSuffix(filepath.Base(*subsArg), filepath.Ext(*subsArg)),
	}}, nil
}

func listFlagFunction() error {
	flagsEnabled := 0
	flag.Visit(func(*flag.Flag) {
		flagsEnabled++
	})
	if flagsEnabled > 1 {
		return errNoCombi
	}

	d := devices.NewDiscovery()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	waitReady(ctx, d)

	rs := d.Receivers()
	if len(rs) == 0 {
		return devices.ErrNoReceivers
	}

	fmt.Println()
	for q, r := range rs {
		boldStart := ""
		boldEnd := ""

		if runtime.GOOS == "linux" {
			boldStart = "\033[1m"
			boldEnd = "\033[0m"
		}
		fmt.Printf("%sDevice %v%s\n", boldStart, q+1, boldEnd)
		fmt.Printf("%s--------%s\n", boldStart, boldEnd)
		fmt.Printf("%sModel:%s %s\n", boldStart, boldEnd, r.DisplayName())
		fmt.Printf("%sAddr:%s  %s\n", boldStart, boldEnd, r.Addr)
		fmt.Println()
	}

	return nil
}

func checkflags() (exit bool, err error) {
	if checkVerflag() {
		return true, nil
	}

	if *listPtr {
		if err := listFlagFunction(); err != nil {
			return false, errors.Wrap(err, "checkflags error")
		}
		return true, nil
	}

	if *mediaArg == "" {
		flag.Usage()
		return true, nil
	}

	if err := checkVflag(); err != nil {
		return false, errors.Wrap(err, "checkflags error")
	}

	if err := checkSflag(); err != nil {
		return false, errors.Wrap(err, "checkflags error")
	}

	if err := checkPflag(); err != nil {
		return false, errors.Wrap(err, "checkflags error")
	}

	return false, nil
}

func checkVflag() error {
	if utils.IsURL(*mediaArg) {
		return nil
	}
	if _, err := os.Stat(*mediaArg); err != nil {
		return errors.Wrap(err, "checkVflag error")
	}
	return nil
}

func checkSflag() error {
	if *subsArg != "" {
		if _, err := os.Stat(*subsArg); err != nil {
			return errors.Wrap(err, "checkSflag error")
		}
		return nil
	}

	if utils.IsURL(*mediaArg) {
		return nil
	}

	// Pick up a subtitles file next to the media file.
	base := strings.TrimSuffix(*mediaArg, filepath.Ext(*mediaArg))
	for _, ext := range []string{".vtt", ".srt"} {
		if _, err := os.Stat(base + ext); err == nil {
			*subsArg = base + ext
			return nil
		}
	}
	return nil
}

func checkPflag() error {
	if *posterArg == "" || utils.IsURL(*posterArg) {
		return nil
	}
	if _, err := os.Stat(*posterArg); err != nil {
		return errors.Wrap(err, "checkPflag error")
	}
	return nil
}

func checkVerflag() bool {
	if *versionPtr {
		fmt.Printf("castbutton version: %s\n", displayVersion(version))
		return true
	}
	return false
}

// displayVersion normalizes a build version to "vX.Y.Z", or "dev".
func displayVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "dev"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "dev"
	}
	return semver.Canonical(v)
}
