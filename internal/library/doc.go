// Package library turns the configured sound files into playable clips.
//
// Every clip is decoded once, downmixed to mono by averaging channels and
// resampled to the engine rate with linear interpolation. The per-file volume
// from the policy travels with the clip, so the mixer never has to work out
// which file a clip came from. A Catalog is immutable; reloading builds a new
// one.
package library
