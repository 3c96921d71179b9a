// Package settings holds the sound policy read by the engine: which files
// play for each event, per-file volume, per-event trigger probability and the
// multi-like switch.
//
// The policy is persisted as a small document of top-level keys (idCode,
// soundMappings, volumeSettings, probabilitySettings, multiLikeEnabled).
// The same document is stored in a file, a Postgres table or a Redis hash,
// one key per entry, so every backend can be edited independently of the
// running engine.
package settings
