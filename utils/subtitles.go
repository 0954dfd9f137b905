package utils

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// SRT uses comma for milliseconds, WebVTT uses dot
var srtTimeRegex = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})`)

func getCharDet(b []byte) (string, error) {
	if len(b) > 512 {
		b = b[:512]
	}

	det := chardet.NewTextDetector()
	charGuess, err := det.DetectBest(b)
	if err != nil {
		return "", err
	}

	return charGuess.Charset, nil
}

// ToUTF8 decodes b from its detected charset. Text that already is UTF-8,
// or whose charset is unknown, is returned unchanged.
func ToUTF8(b []byte) ([]byte, error) {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	charset, err := getCharDet(b)
	if err != nil || charset == "" || strings.EqualFold(charset, "UTF-8") || strings.EqualFold(charset, "ISO-8859-1") && isASCII(b) {
		return b, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return b, nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return nil, fmt.Errorf("decode %s subtitles: %w", charset, err)
	}
	return out, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// ConvertSRTReaderToWebVTT converts SRT content from a reader to WebVTT.
func ConvertSRTReaderToWebVTT(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("WEBVTT\n\n")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		// 00:00:01,234 --> 00:00:04,567 becomes 00:00:01.234 --> 00:00:04.567
		if strings.Contains(line, " --> ") {
			line = srtTimeRegex.ReplaceAllString(line, "$1.$2")
		}

		buf.WriteString(line)
		buf.WriteString("\n")
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}

	return buf.Bytes(), nil
}

// LoadSubtitles reads a subtitle file as UTF-8 WebVTT, the only text track
// format receivers load. SRT files are converted.
func LoadSubtitles(p string) ([]byte, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("load subtitles: %w", err)
	}

	text, err := ToUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("load subtitles: %w", err)
	}

	switch strings.ToLower(filepath.Ext(p)) {
	case ".vtt":
		return text, nil
	case ".srt":
		return ConvertSRTReaderToWebVTT(bytes.NewReader(text))
	default:
		return nil, fmt.Errorf("load subtitles: unsupported format %q", filepath.Ext(p))
	}
}
