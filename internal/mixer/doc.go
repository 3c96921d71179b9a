// Package mixer plays triggered clips by summing them into fixed-size blocks.
//
// Playing sounds live in a fixed number of voice slots guarded by a single
// mutex. Trigger prepares the scaled playback buffer before taking the lock,
// and Mix only walks the slots, so neither side allocates or does I/O while
// holding it.
package mixer
