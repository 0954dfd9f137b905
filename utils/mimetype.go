package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/hashicorp/go-retryablehttp"
)

var ErrUnknownType = errors.New("unknown media type")

const (
	probeHTTPClientTimeout         = 10 * time.Second
	probeHTTPDialTimeout           = 5 * time.Second
	probeHTTPKeepAlive             = 30 * time.Second
	probeHTTPTLSHandshakeTimeout   = 5 * time.Second
	probeHTTPResponseHeaderTimeout = 5 * time.Second
	probeHTTPIdleConnTimeout       = 90 * time.Second
	probeRetryMax                  = 2
)

var probeHTTPTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   probeHTTPDialTimeout,
		KeepAlive: probeHTTPKeepAlive,
	}).DialContext,
	TLSHandshakeTimeout:   probeHTTPTLSHandshakeTimeout,
	ResponseHeaderTimeout: probeHTTPResponseHeaderTimeout,
	IdleConnTimeout:       probeHTTPIdleConnTimeout,
}

func newRetryableHTTPClient(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{
		Timeout:   probeHTTPClientTimeout,
		Transport: probeHTTPTransport,
	}

	return retryClient.StandardClient()
}

// GetMimeDetailsFromBytes sniffs the media type of a file head.
func GetMimeDetailsFromBytes(head []byte) (string, error) {
	kind, err := filetype.Match(head)
	if err != nil {
		return "", fmt.Errorf("getMimeDetailsFromBytes error: %w", err)
	}
	if kind == filetype.Unknown {
		return "", ErrUnknownType
	}

	return kind.MIME.Value, nil
}

// GetMimeDetailsFromFile returns the media file mime details.
func GetMimeDetailsFromFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("getMimeDetailsFromFile error: %w", err)
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("getMimeDetailsFromFile error #2: %w", err)
	}

	return GetMimeDetailsFromBytes(head[:n])
}

// GetMimeDetailsFromURL asks the server for the Content-Type of s with a
// HEAD request. Generic types are not trusted.
func GetMimeDetailsFromURL(ctx context.Context, s string) (string, error) {
	if _, err := url.ParseRequestURI(s); err != nil {
		return "", fmt.Errorf("getMimeDetailsFromURL failed to parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s, nil)
	if err != nil {
		return "", fmt.Errorf("getMimeDetailsFromURL failed to call NewRequest: %w", err)
	}

	resp, err := newRetryableHTTPClient(probeRetryMax).Do(req)
	if err != nil {
		return "", fmt.Errorf("getMimeDetailsFromURL failed to client.Do: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("getMimeDetailsFromURL bad status: %s", resp.Status)
	}

	mediaType := normalizeContentType(resp.Header.Get("Content-Type"))
	if shouldSniffContentType(mediaType) {
		return "", ErrUnknownType
	}

	return mediaType, nil
}

// MediaType returns the media type of a local path or a URL. Content is
// checked first, the file extension is the fallback.
func MediaType(ctx context.Context, src string) (string, error) {
	if IsURL(src) {
		if mt, err := GetMimeDetailsFromURL(ctx, src); err == nil {
			return mt, nil
		}
		u, _ := url.Parse(src)
		if mt := typeByExtension(path.Ext(u.Path)); mt != "" {
			return mt, nil
		}
		return "", ErrUnknownType
	}

	if mt, err := GetMimeDetailsFromFile(src); err == nil {
		return mt, nil
	}
	if mt := typeByExtension(filepath.Ext(src)); mt != "" {
		return mt, nil
	}
	return "", ErrUnknownType
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func typeByExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".vtt":
		return "text/vtt"
	case ".srt":
		return "application/x-subrip"
	case ".m3u8":
		return "application/x-mpegURL"
	case ".mkv":
		return "video/x-matroska"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return normalizeContentType(mime.TypeByExtension(ext))
}

func normalizeContentType(v string) string {
	if v == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(v)
	if err == nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}

	parts := strings.Split(v, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

func shouldSniffContentType(mediaType string) bool {
	switch mediaType {
	case "", "/", "application/octet-stream", "binary/octet-stream", "text/plain":
		return true
	default:
		return false
	}
}
