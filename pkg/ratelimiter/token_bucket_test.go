package ratelimiter

import "testing"

func TestTokenBucketBurstThenDeny(t *testing.T) {
	tb := NewTokenBucket(0.0001, 3) // 补充速率近似为零

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d denied within burst capacity", i+1)
		}
	}
	if tb.Allow() {
		t.Error("request allowed after bucket drained")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1000, 1)
	if !tb.Allow() {
		t.Fatal("first request denied")
	}
	// 1000 tokens/s 下，自旋等待补充一个令牌。
	deadline := 100000
	for i := 0; i < deadline; i++ {
		if tb.Allow() {
			return
		}
	}
	t.Error("bucket never refilled")
}

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	l := NewKeyedLimiter(0.0001, 1)

	if !l.Allow("user-a") {
		t.Fatal("first request for user-a denied")
	}
	if l.Allow("user-a") {
		t.Error("second request for user-a allowed past capacity")
	}
	if !l.Allow("user-b") {
		t.Error("user-b must have an independent bucket")
	}
}
