package castbutton

import (
	"context"
	"testing"
	"time"
)

func TestProberRun(t *testing.T) {
	tests := []struct {
		name        string
		availableOn int
		want        bool
		wantChecks  int
		wantInits   int
	}{
		{name: "available on third attempt", availableOn: 3, want: true, wantChecks: 3, wantInits: 1},
		{name: "available right away", availableOn: 1, want: true, wantChecks: 1, wantInits: 1},
		{name: "never available", availableOn: 0, want: false, wantChecks: 5, wantInits: 0},
		{name: "available too late", availableOn: 6, want: false, wantChecks: 5, wantInits: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sdk := &fakeSDK{availableOn: tt.availableOn}
			pr := &Prober{Interval: time.Millisecond, MaxAttempts: 5}

			inits := 0
			got := pr.Run(context.Background(), sdk, func() { inits++ })

			if got != tt.want {
				t.Fatalf("Run() = %v, want %v", got, tt.want)
			}
			if checks, _, _ := sdk.counts(); checks != tt.wantChecks {
				t.Fatalf("IsAvailable called %d times, want %d", checks, tt.wantChecks)
			}
			if inits != tt.wantInits {
				t.Fatalf("init called %d times, want %d", inits, tt.wantInits)
			}
		})
	}
}

func TestProberNilSDK(t *testing.T) {
	pr := &Prober{Interval: time.Millisecond, MaxAttempts: 5}
	if pr.Run(context.Background(), nil, func() { t.Fatalf("init called without an SDK") }) {
		t.Fatalf("Run(nil) = true, want false")
	}
}

func TestProberCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sdk := &fakeSDK{availableOn: 1}
	pr := &Prober{Interval: time.Hour, MaxAttempts: 5}
	if pr.Run(ctx, sdk, func() {}) {
		t.Fatalf("Run() = true on a canceled context, want false")
	}
	if checks, _, _ := sdk.counts(); checks != 0 {
		t.Fatalf("IsAvailable called %d times, want 0", checks)
	}
}
