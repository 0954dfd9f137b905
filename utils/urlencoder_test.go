package utils

import "testing"

func TestConvertFilename(t *testing.T) {
	tt := []struct {
		in   string
		want string
	}{
		{"/home/user/movie.mp4", "movie.mp4"},
		{"/home/user/my movie.mp4", "my%20movie.mp4"},
		{"/tmp/a&b?.mkv", "a%26b%3F.mkv"},
		{"/tmp/ταινία.mp4", "%CF%84%CE%B1%CE%B9%CE%BD%CE%AF%CE%B1.mp4"},
	}

	for _, tc := range tt {
		if got := ConvertFilename(tc.in); got != tc.want {
			t.Fatalf("ConvertFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRandomString(t *testing.T) {
	a, err := RandomString()
	if err != nil {
		t.Fatalf("RandomString() err = %v, want nil", err)
	}
	b, err := RandomString()
	if err != nil {
		t.Fatalf("RandomString() err = %v, want nil", err)
	}

	if len(a) != 32 {
		t.Fatalf("len(RandomString()) = %d, want 32", len(a))
	}
	if a == b {
		t.Fatalf("RandomString() returned %q twice", a)
	}
}
