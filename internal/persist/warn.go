package persist

import (
	"log/slog"
	"sync/atomic"
)

// WarnState tracks whether the session has already warned about the remote
// tier being unreachable.
type WarnState int32

const (
	Cold WarnState = iota
	Warned
)

func (w WarnState) String() string {
	if w == Warned {
		return "warned"
	}
	return "cold"
}

// warnOnce logs the first remote failure at warn level and later ones at
// debug, so a dead endpoint does not flood the log.
type warnOnce struct {
	state atomic.Int32
}

func (w *warnOnce) warn(msg string, args ...any) {
	if w.state.CompareAndSwap(int32(Cold), int32(Warned)) {
		slog.Warn(msg+" (further remote errors logged at debug level)", args...)
		return
	}
	slog.Debug(msg, args...)
}

func (w *warnOnce) get() WarnState { return WarnState(w.state.Load()) }

func (w *warnOnce) reset() { w.state.Store(int32(Cold)) }
