package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}
	if clock.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", clock.Pending())
	}

	clock.Advance(3 * time.Second)

	select {
	case <-channel:
	default:
		t.Fatal("After did not fire after Advance")
	}
	if clock.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", clock.Pending())
	}
}

func TestFakeClockAfterZeroDuration(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeClockSet(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(time.Hour)
	clock.Set(epoch.Add(2 * time.Hour))

	select {
	case got := <-channel:
		if !got.Equal(epoch.Add(2 * time.Hour)) {
			t.Fatalf("fired with %v", got)
		}
	default:
		t.Fatal("After did not fire after Set")
	}
}

func TestRealClockAfterZero(t *testing.T) {
	select {
	case <-Real().After(0):
	case <-time.After(time.Second):
		t.Fatal("Real().After(0) did not fire")
	}
}
