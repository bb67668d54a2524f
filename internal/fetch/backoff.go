package fetch

import "time"

// BackoffState is an immutable exponential backoff value. Each call to Next
// returns the successor state instead of mutating shared fields, which keeps
// retry timing unit-testable without clock-dependent mutation.
type BackoffState struct {
	Attempt int
	Delay   time.Duration

	base time.Duration
	cap  time.Duration
}

func NewBackoffState(base, cap time.Duration) BackoffState {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if cap <= 0 {
		cap = 5 * time.Second
	}
	return BackoffState{base: base, cap: cap}
}

// Next returns the state for the following retry. The delay doubles each
// step up to the cap, so consecutive delays are monotonic non-decreasing.
func (s BackoffState) Next() BackoffState {
	next := BackoffState{Attempt: s.Attempt + 1, base: s.base, cap: s.cap}
	d := s.base << uint(s.Attempt)
	if d > s.cap || d <= 0 {
		d = s.cap
	}
	next.Delay = d
	return next
}
