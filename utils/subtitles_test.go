package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

const sampleSRT = "1\r\n00:00:01,234 --> 00:00:04,567\r\nHello, world\r\n\r\n2\r\n00:01:02,000 --> 00:01:03,500\r\nSecond line\r\n"

func TestConvertSRTReaderToWebVTT(t *testing.T) {
	got, err := ConvertSRTReaderToWebVTT(strings.NewReader(sampleSRT))
	if err != nil {
		t.Fatalf("ConvertSRTReaderToWebVTT() err = %v", err)
	}

	want := "WEBVTT\n\n1\n00:00:01.234 --> 00:00:04.567\nHello, world\n\n2\n00:01:02.000 --> 00:01:03.500\nSecond line\n"
	if string(got) != want {
		t.Fatalf("ConvertSRTReaderToWebVTT() = %q, want %q", got, want)
	}
}

func TestLoadSubtitles(t *testing.T) {
	dir := t.TempDir()

	srt := filepath.Join(dir, "movie.srt")
	if err := os.WriteFile(srt, []byte(sampleSRT), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadSubtitles(srt)
	if err != nil {
		t.Fatalf("LoadSubtitles(srt) err = %v", err)
	}
	if !strings.HasPrefix(string(got), "WEBVTT\n") || !strings.Contains(string(got), "00:00:01.234") {
		t.Fatalf("LoadSubtitles(srt) = %q", got)
	}

	vtt := filepath.Join(dir, "movie.vtt")
	body := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHi\n"
	if err := os.WriteFile(vtt, []byte("\xef\xbb\xbf"+body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = LoadSubtitles(vtt)
	if err != nil || string(got) != body {
		t.Fatalf("LoadSubtitles(vtt) = %q, %v, want %q", got, err, body)
	}

	ass := filepath.Join(dir, "movie.ass")
	if err := os.WriteFile(ass, []byte("[Script Info]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSubtitles(ass); err == nil {
		t.Fatalf("LoadSubtitles(ass) err = nil, want unsupported format")
	}
}

func TestToUTF8DecodesLegacyCharset(t *testing.T) {
	text := strings.Repeat("Ελληνικοί υπότιτλοι για την ταινία μας. ", 8)
	legacy, err := charmap.ISO8859_7.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ToUTF8(legacy)
	if err != nil {
		t.Fatalf("ToUTF8() err = %v", err)
	}
	if string(got) != text {
		t.Fatalf("ToUTF8() = %q, want %q", got, text)
	}
}

func TestToUTF8KeepsUTF8(t *testing.T) {
	text := []byte("Grüße aus München, schöne Untertitel.")
	got, err := ToUTF8(text)
	if err != nil || string(got) != string(text) {
		t.Fatalf("ToUTF8() = %q, %v, want unchanged", got, err)
	}
}
