// Package iops adapts the networking engine's I/O and timer requests to the
// cooperative loop of the reactor package.
//
// The engine never talks to the loop directly. It creates events and timers through
// the Adapter factories and changes their registrations with UpdateEvent and
// UpdateTimer. Readiness is delivered once per registration: when a descriptor
// becomes readable the reader is removed, the READ bit is cleared and only then the
// engine callback runs. The engine asks for interest again when it wants more.
//
// A WATCH replaces the interest mask instead of adding to it. Bits that were watched
// before and are missing from the new mask remain registered with the loop until
// they fire.
package iops
