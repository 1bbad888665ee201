// Package simnet is the simulated network core: address/socket
// registry, link fault model, and packet dispatcher for a deterministic
// distributed-systems simulator. It routes messages between virtual
// nodes by simulated IP/port, imposes per-link latency and loss drawn
// from a seeded PRNG, and delivers to typed socket objects identified
// by (address, protocol).
//
// The package never performs real OS I/O, never retries or reorders on
// its own behalf, and never calls into a Socket while its internal
// lock is held — the dispatcher hands the caller a resolved socket and
// a latency, and the caller (a transport layer) schedules the actual
// delivery out of line. This keeps simnet single-threaded in spirit
// even though its methods are safe to call from any goroutine.
package simnet
