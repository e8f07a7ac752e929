package timeutil

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_AfterFunc(t *testing.T) {
	clock := RealClock{}
	done := make(chan struct{})
	clock.AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("AfterFunc callback did not run")
	}
}

func TestRealClock_AfterFuncStop(t *testing.T) {
	clock := RealClock{}
	var ran atomic.Bool
	timer := clock.AfterFunc(50*time.Millisecond, func() { ran.Store(true) })
	if !timer.Stop() {
		t.Fatal("Stop() = false on a pending timer")
	}
	time.Sleep(80 * time.Millisecond)
	if ran.Load() {
		t.Error("stopped timer still ran")
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_AfterFuncFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	var order []string
	clock.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	clock.AfterFunc(time.Second, func() { order = append(order, "a") })

	clock.Advance(500 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("timers fired early: %v", order)
	}
	if clock.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", clock.Pending())
	}

	clock.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("fire order = %v, want [a b]", order)
	}
	if clock.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clock.Pending())
	}
}

func TestMockClock_StopPreventsFire(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() on active timer = false, want true")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
	clock.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestMockClock_CallbackCanReschedule(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clock.AfterFunc(time.Second, tick)
		}
	}
	clock.AfterFunc(time.Second, tick)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	got := clock.Scheduled()
	if len(got) != 3 {
		t.Fatalf("Scheduled() = %v, want 3 entries", got)
	}
	for _, d := range got {
		if d != time.Second {
			t.Errorf("scheduled %v, want 1s", d)
		}
	}
}

func TestMockClock_Ticker(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClock_SetDoesNotFire(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewMockClock(start)
	fired := false
	clock.AfterFunc(time.Second, func() { fired = true })

	clock.Set(start.Add(90 * time.Second))
	if got := clock.Now().Sub(start); got != 90*time.Second {
		t.Errorf("Now() moved by %v, want 90s", got)
	}
	if fired {
		t.Error("Set fired a timer")
	}
	clock.Advance(0)
	if !fired {
		t.Error("Advance(0) did not fire the overdue timer")
	}
}
