package gateway

import (
	"testing"
	"time"
)

func Test_RateLimiter_DisabledWhenRPMNotPositive(t *testing.T) {
	rl := NewRateLimiter(0, 5)
	if rl.Enabled() {
		t.Fatalf("expected disabled limiter for rpm=0")
	}
	for i := 0; i < 100; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("disabled limiter must always allow")
		}
	}
}

func Test_RateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(100, 3)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("expected burst request %d to be allowed", i)
		}
	}
	if rl.Allow("client-a") {
		t.Fatalf("expected 4th request within the same second to be blocked")
	}

	now = now.Add(2 * time.Second)
	rl.now = func() time.Time { return now }
	if !rl.Allow("client-a") {
		t.Fatalf("expected request to be allowed once the burst window rolled forward")
	}
}

func Test_RateLimiter_BlocksAfterPerMinuteCap(t *testing.T) {
	rl := NewRateLimiter(2, 10)
	now := time.Now()
	rl.now = func() time.Time { return now }

	if !rl.Allow("client-a") || !rl.Allow("client-a") {
		t.Fatalf("expected first two requests to be allowed")
	}
	if rl.Allow("client-a") {
		t.Fatalf("expected third request within the minute to be blocked")
	}

	now = now.Add(61 * time.Second)
	rl.now = func() time.Time { return now }
	if !rl.Allow("client-a") {
		t.Fatalf("expected request to be allowed once the minute window rolled forward")
	}
}

func Test_RateLimiter_TracksClientsIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") {
		t.Fatalf("expected client a first request allowed")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected client b unaffected by client a's usage")
	}
}
