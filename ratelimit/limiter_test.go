package ratelimit

import (
	"testing"
	"time"
)

func TestAllow_WithinLimit(t *testing.T) {
	l := New()
	limit := 3
	now := time.Now()

	for i := 0; i < 3; i++ {
		result := l.Allow("key-1", &limit, now)
		if !result.Allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}

	result := l.Allow("key-1", &limit, now)
	if result.Allowed {
		t.Fatal("Expected 4th request to be rejected")
	}
	if result.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", result.Remaining)
	}
}

func TestAllow_FallsBackToDefaultLimit(t *testing.T) {
	l := New()
	now := time.Now()

	result := l.Allow("key-1", nil, now)
	if result.Limit != defaultLimit {
		t.Errorf("Expected default limit %d, got %d", defaultLimit, result.Limit)
	}
}

func TestAllow_SeparateKeysHaveIndependentCounters(t *testing.T) {
	l := New()
	limit := 1
	now := time.Now()

	if !l.Allow("key-1", &limit, now).Allowed {
		t.Fatal("Expected key-1 first request to be allowed")
	}
	if !l.Allow("key-2", &limit, now).Allowed {
		t.Fatal("Expected key-2 first request to be allowed, independent of key-1")
	}
}

func TestAllow_NewHourResetsQuota(t *testing.T) {
	l := New()
	limit := 1
	now := time.Now()

	if !l.Allow("key-1", &limit, now).Allowed {
		t.Fatal("Expected first request to be allowed")
	}
	if l.Allow("key-1", &limit, now).Allowed {
		t.Fatal("Expected second request in the same hour to be rejected")
	}

	nextHour := now.Add(time.Hour)
	if !l.Allow("key-1", &limit, nextHour).Allowed {
		t.Fatal("Expected the first request of the next hour bucket to be allowed")
	}
}

func TestHourBucket_Monotonic(t *testing.T) {
	now := time.Now()
	later := now.Add(90 * time.Minute)
	if HourBucket(later) <= HourBucket(now) {
		t.Errorf("Expected HourBucket to advance over 90 minutes: %d vs %d", HourBucket(now), HourBucket(later))
	}
}
