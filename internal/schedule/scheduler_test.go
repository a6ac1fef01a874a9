package schedule

import "testing"

func TestSchedulerRunsTasksInTickOrder(t *testing.T) {
	s := New()
	var order []int
	s.At(5, func() { order = append(order, 5) })
	s.At(3, func() { order = append(order, 3) })
	s.At(3, func() { order = append(order, 30) })

	s.Advance(10)

	want := []int{3, 30, 5}
	if len(order) != len(want) {
		t.Fatalf("ran %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending = %d after drain", s.Pending())
	}
}

func TestSchedulerAfterIsRelative(t *testing.T) {
	s := New()
	s.Advance(100)

	ran := false
	s.After(5, func() { ran = true })

	s.Advance(104)
	if ran {
		t.Fatal("task ran before its delay elapsed")
	}
	s.Advance(105)
	if !ran {
		t.Fatal("task did not run at its due tick")
	}
}

func TestSchedulerPastTicksRunNext(t *testing.T) {
	s := New()
	s.Advance(50)

	ran := false
	s.At(10, func() { ran = true })
	s.Advance(51)
	if !ran {
		t.Fatal("task queued in the past did not run on the next advance")
	}
}

func TestSchedulerRetryPassesAttemptIndex(t *testing.T) {
	s := New()
	var attempts []int
	s.Retry([]uint64{10, 30, 60}, func(attempt int) {
		attempts = append(attempts, attempt)
	})

	s.Advance(9)
	if len(attempts) != 0 {
		t.Fatalf("attempts before first offset: %v", attempts)
	}
	s.Advance(10)
	s.Advance(30)
	s.Advance(60)

	if len(attempts) != 3 {
		t.Fatalf("ran %d attempts, want 3", len(attempts))
	}
	for i, attempt := range attempts {
		if attempt != i {
			t.Fatalf("attempts = %v, want [0 1 2]", attempts)
		}
	}
	// The schedule is finite; nothing remains queued.
	if s.Pending() != 0 {
		t.Fatalf("Pending = %d after final attempt", s.Pending())
	}
}

func TestSchedulerTasksQueuedDuringAdvance(t *testing.T) {
	s := New()
	var ran []string
	s.At(5, func() {
		ran = append(ran, "outer")
		s.After(0, func() { ran = append(ran, "inner") })
	})

	s.Advance(5)
	if len(ran) != 1 || ran[0] != "outer" {
		t.Fatalf("after first advance ran = %v", ran)
	}
	s.Advance(6)
	if len(ran) != 2 || ran[1] != "inner" {
		t.Fatalf("after second advance ran = %v", ran)
	}
}

func TestSchedulerNilReceiver(t *testing.T) {
	var s *Scheduler
	s.At(1, func() {})
	s.After(1, func() {})
	s.Advance(10)
	if s.Now() != 0 || s.Pending() != 0 {
		t.Fatal("nil scheduler reported state")
	}
}
