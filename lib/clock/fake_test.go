// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFiresAtDeadline(t *testing.T) {
	t.Parallel()

	fake := Fake(epoch)
	channel := fake.After(10 * time.Second)

	fake.Advance(9 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-channel:
		if want := epoch.Add(10 * time.Second); !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}

	if count := fake.PendingCount(); count != 0 {
		t.Errorf("PendingCount = %d after one-shot fired, want 0", count)
	}
}

func TestFakeClock_AfterNonPositive(t *testing.T) {
	t.Parallel()

	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) should be ready immediately")
	}
}

func TestFakeClock_TickerReschedules(t *testing.T) {
	t.Parallel()

	fake := Fake(epoch)
	ticker := fake.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		fake.Advance(5 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}

	if count := fake.PendingCount(); count != 1 {
		t.Errorf("PendingCount = %d, want 1 (ticker stays registered)", count)
	}
}

func TestFakeClock_TickerStop(t *testing.T) {
	t.Parallel()

	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()
	fake.Advance(time.Second)

	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeClock_WaitForTimers(t *testing.T) {
	t.Parallel()

	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-fake.After(time.Minute)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("goroutine did not observe the advanced clock")
	}
}

func TestSince(t *testing.T) {
	t.Parallel()

	fake := Fake(epoch)
	fake.Advance(90 * time.Second)
	if elapsed := Since(fake, epoch); elapsed != 90*time.Second {
		t.Errorf("Since = %v, want 90s", elapsed)
	}
}
