package httphandlers

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HTTPserver - new http.Server instance serving the media, poster and text
// tracks a receiver loads.
type HTTPserver struct {
	http     *http.Server
	Mux      *http.ServeMux
	handlers map[string]content
	addr     string
	mu       sync.Mutex

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

type content struct {
	mediaType string
	media     any // local path (string) or []byte
}

// We use this type to be able to test
// the serveContent function without the
// need of os.Open in the tests.
type osFileType struct {
	time time.Time
	file io.ReadSeeker
	path string
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (s *HTTPserver) Log() *zerolog.Logger {
	if s.LogOutput != nil {
		s.initLogOnce.Do(func() {
			s.Logger = zerolog.New(s.LogOutput).With().Timestamp().Str("Component", "httphandlers").Logger()
		})
	}
	return &s.Logger
}

// AddHandler serves media under path. media is a local file path or the
// content itself.
func (s *HTTPserver) AddHandler(path, mediaType string, media any) {
	s.mu.Lock()
	s.handlers[path] = content{mediaType: mediaType, media: media}
	s.mu.Unlock()
}

// RemoveHandler dynamically removes a handler.
func (s *HTTPserver) RemoveHandler(path string) {
	s.mu.Lock()
	delete(s.handlers, path)
	s.mu.Unlock()
}

// URL returns the address receivers use to fetch path.
func (s *HTTPserver) URL(path string) string {
	s.mu.Lock()
	addr := s.addr
	s.mu.Unlock()
	if addr == "" {
		addr = s.http.Addr
	}
	return "http://" + addr + path
}

// StartServer listens on the server address and serves until StopServer.
// The listen result is sent on serverStarted.
func (s *HTTPserver) StartServer(serverStarted chan<- error) {
	s.Mux.HandleFunc("/", s.ServeMediaHandler())

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		serverStarted <- fmt.Errorf("server listen error: %w", err)
		return
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.Log().Debug().Str("Method", "StartServer").Str("Addr", ln.Addr().String()).Msg("serving media")
	serverStarted <- nil
	_ = s.http.Serve(ln)
}

// ServeMediaHandler is a helper method used to properly handle media and subtitle streaming.
func (s *HTTPserver) ServeMediaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Receivers fetch text tracks and posters cross-origin.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		s.mu.Lock()
		out, exists := s.handlers[r.URL.Path]
		s.mu.Unlock()

		if !exists {
			http.Error(w, "not exists", http.StatusNotFound)
			return
		}

		s.Log().Debug().Str("Method", r.Method).Str("Path", r.URL.Path).Str("Range", r.Header.Get("Range")).Msg("request")

		media := out.media
		if f, ok := media.(string); ok {
			m, err := os.Open(f)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			defer m.Close()

			info, err := m.Stat()
			if err != nil {
				http.NotFound(w, r)
				return
			}

			media = osFileType{
				time: info.ModTime(),
				file: m,
				path: f,
			}
		}

		serveContent(w, r, out.mediaType, media)
	}
}

// StopServer forcefully closes the HTTP server.
func (s *HTTPserver) StopServer() {
	s.http.Close()
}

// NewServer constractor generates a new HTTPserver type.
func NewServer(a string) *HTTPserver {
	mux := http.NewServeMux()
	srv := HTTPserver{
		http:     &http.Server{Addr: a, Handler: mux},
		Mux:      mux,
		handlers: make(map[string]content),
		Logger:   zerolog.Nop(),
	}

	return &srv
}

func serveContent(w http.ResponseWriter, r *http.Request, mediaType string, mf any) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if mediaType != "" {
		w.Header().Set("Content-Type", mediaType)
	}

	switch f := mf.(type) {
	case osFileType:
		serveContentFile(w, r, f)
	case []byte:
		name := strings.TrimLeft(r.URL.Path, "/")
		http.ServeContent(w, r, name, time.Now(), bytes.NewReader(f))
	default:
		http.NotFound(w, r)
	}
}

func serveContentFile(w http.ResponseWriter, r *http.Request, f osFileType) {
	name := strings.TrimLeft(r.URL.Path, "/")

	if r.Method == http.MethodGet {
		http.ServeContent(w, r, name, f.time, f.file)
		return
	}

	size, err := f.file.Seek(0, io.SeekEnd)
	if err != nil {
		http.Error(w, "cant get file size", http.StatusInternalServerError)
		return
	}
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "cant get file size", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	if !f.time.IsZero() && !f.time.Equal(time.Unix(0, 0)) {
		w.Header().Set("Last-Modified", f.time.UTC().Format(http.TimeFormat))
	}
}
