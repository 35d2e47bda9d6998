package xdp

import "errors"

// Sentinel errors for the ring protocol, matching the taxonomy a caller
// checks with errors.Is. Io wraps the underlying syscall error with %w
// so callers can also inspect the errno.
var (
	// ErrRingFull is returned when a TX Seek cannot reclaim any frame:
	// the Completion ring is empty and the cached available count is 0.
	ErrRingFull = errors.New("xdp: ring full")
	// ErrRingEmpty is returned when an RX Seek finds no new packets.
	ErrRingEmpty = errors.New("xdp: ring empty")
	// ErrNotAvailable is returned by Commit(n) when n exceeds available.
	ErrNotAvailable = errors.New("xdp: not available")
	// ErrInvalidIndex is returned by Peek when i >= available.
	ErrInvalidIndex = errors.New("xdp: invalid index")
	// ErrInvalidLength is returned by TX Peek when len exceeds FrameSize.
	ErrInvalidLength = errors.New("xdp: invalid length")
	// ErrIo wraps any underlying syscall failure during construction or kick.
	ErrIo = errors.New("xdp: io error")

	// ErrClosed is returned by Seek/Peek/Commit after Close.
	ErrClosed = errors.New("xdp: handle closed")
)
