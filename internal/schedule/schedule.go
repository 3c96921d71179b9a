package schedule

import "time"

// Repeat calls fn n times on a new goroutine, waiting interval between calls.
// The first call happens immediately. Repeat does not wait for the calls and
// they cannot be cancelled; fn must only hold what it needs to run.
func Repeat(n int, interval time.Duration, fn func(i int)) {
	if n <= 0 {
		return
	}
	go func() {
		for i := range n {
			if i > 0 && interval > 0 {
				time.Sleep(interval)
			}
			fn(i)
		}
	}()
}
