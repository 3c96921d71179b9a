// Package live keeps a session with the live open platform.
//
// A Session starts a game through the signed HTTP API, dials the websocket
// endpoint it returns, authenticates and then runs three tasks until the
// connection drops or the context ends: a connection keepalive, a service
// heartbeat and the receive loop that hands event frames to a Dispatcher.
// A dropped connection is replaced by bootstrapping a new game with
// exponential backoff.
package live
