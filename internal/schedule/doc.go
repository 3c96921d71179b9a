// Package schedule provides utilities for cron expression handling and deferred execution.
//
// Cron functions parse and validate cron expressions and compute upcoming run times;
// RunCron drives a function from an expression until its context ends.
// Repeat runs a function a fixed number of times on its own goroutine.
package schedule
