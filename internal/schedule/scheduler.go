package schedule

import "sort"

// Task is a deferred callback keyed to a tick count.
type Task func()

// Scheduler runs callbacks at specific future ticks. It replaces ad hoc
// timed re-checks with an explicit queue the session advances once per tick,
// so deferred work always executes inside the tick loop rather than on a
// timer goroutine.
type Scheduler struct {
	now   uint64
	tasks map[uint64][]Task
}

// New constructs an empty scheduler positioned at tick zero.
func New() *Scheduler {
	return &Scheduler{tasks: make(map[uint64][]Task)}
}

// Now reports the tick the scheduler last advanced to.
func (s *Scheduler) Now() uint64 {
	if s == nil {
		return 0
	}
	return s.now
}

// At queues fn for the given absolute tick. Ticks at or before the current
// position run on the next Advance call.
func (s *Scheduler) At(tick uint64, fn Task) {
	if s == nil || fn == nil {
		return
	}
	if tick <= s.now {
		tick = s.now + 1
	}
	s.tasks[tick] = append(s.tasks[tick], fn)
}

// After queues fn delay ticks past the current position.
func (s *Scheduler) After(delay uint64, fn Task) {
	if s == nil {
		return
	}
	s.At(s.now+delay, fn)
}

// Retry queues fn once per offset relative to the current tick. The attempt
// index is zero-based. The schedule is finite: after the last offset fires
// the work never runs again, so callers must pick offsets that cover the
// window they care about.
func (s *Scheduler) Retry(offsets []uint64, fn func(attempt int)) {
	if s == nil || fn == nil {
		return
	}
	for i, offset := range offsets {
		attempt := i
		s.After(offset, func() { fn(attempt) })
	}
}

// Advance moves the scheduler to the given tick and runs every task that
// came due, in tick order. Tasks queued for the same tick run in the order
// they were added. Tasks queued during Advance for an already-passed tick
// run on the following Advance.
func (s *Scheduler) Advance(tick uint64) {
	if s == nil || tick <= s.now {
		return
	}
	due := make([]uint64, 0, len(s.tasks))
	for t := range s.tasks {
		if t > s.now && t <= tick {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	s.now = tick
	for _, t := range due {
		tasks := s.tasks[t]
		delete(s.tasks, t)
		for _, fn := range tasks {
			fn()
		}
	}
}

// Pending reports the number of queued tasks.
func (s *Scheduler) Pending() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, tasks := range s.tasks {
		total += len(tasks)
	}
	return total
}
