package signal

import (
	"testing"
	"time"
)

func TestChatRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewChatRateLimiter(3, time.Minute)
	for n := 0; n < 3; n++ {
		if !rl.Allow("u1") {
			t.Fatalf("attempt %d blocked under the limit", n)
		}
	}
	if rl.Allow("u1") {
		t.Fatal("attempt over the limit allowed")
	}
	// other users have their own window
	if !rl.Allow("u2") {
		t.Fatal("unrelated user blocked")
	}
}

func TestChatRateLimiterWindowExpiry(t *testing.T) {
	rl := NewChatRateLimiter(1, 20*time.Millisecond)
	if !rl.Allow("u1") {
		t.Fatal("first attempt blocked")
	}
	if rl.Allow("u1") {
		t.Fatal("second attempt allowed inside the window")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("u1") {
		t.Fatal("attempt blocked after the window expired")
	}
}

func TestChatRateLimiterDisabled(t *testing.T) {
	rl := NewChatRateLimiter(0, time.Minute)
	for n := 0; n < 100; n++ {
		if !rl.Allow("u1") {
			t.Fatal("disabled limiter blocked")
		}
	}
}
