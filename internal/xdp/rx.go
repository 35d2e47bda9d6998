package xdp

import (
	"time"

	"golang.org/x/sys/unix"
)

// RxHandle is the receive side of an AF_XDP socket: a single reader
// consumes descriptors the kernel posts to the RX ring and, on
// Commit, returns their frames to the kernel via the Fill ring so
// they can be reused for future receives.
//
// Like TxHandle, RxHandle is not safe for concurrent use.
type RxHandle struct {
	handleCore
}

// Seek ensures at least n descriptors are available to read, acquire-
// loading the RX ring's kernel-owned producer. If the cached available
// count already covers n it returns that count; otherwise it returns
// min(available, n) after refreshing available from the producer, or
// ErrRingEmpty if the kernel has posted nothing new.
func (h *RxHandle) Seek(n uint32) (uint32, error) {
	if err := h.checkClosed(); err != nil {
		return 0, err
	}
	if h.available >= n {
		return h.available, nil
	}

	produced := h.xRing.Producer() // acquire-load, kernel-owned
	avail := produced - h.consumer // wrapping: valid across uint32 overflow
	if avail == 0 {
		return 0, ErrRingEmpty
	}
	h.available = avail
	return min(h.available, n), nil
}

// Peek returns a read-only slice over the i-th available received
// frame, sized to the length the kernel wrote into the descriptor. i
// must be less than the value last returned by Seek.
func (h *RxHandle) Peek(i uint32) ([]byte, error) {
	if err := h.checkClosed(); err != nil {
		return nil, err
	}
	if i >= h.available {
		return nil, ErrInvalidIndex
	}
	desc := h.xRing.Slot((h.consumer + i) & h.xRing.Mask())
	return h.frameBytes(desc.Addr, int(desc.Len)), nil
}

// Commit releases the first n received frames back to the kernel via
// the Fill ring and advances the RX ring's consumer. n must not exceed
// the value last returned by Seek.
func (h *RxHandle) Commit(n uint32) error {
	if err := h.checkClosed(); err != nil {
		return err
	}
	if n > h.available {
		return ErrNotAvailable
	}

	xmask := h.xRing.Mask()
	fmask := h.uRing.Mask()
	for j := uint32(0); j < n; j++ {
		desc := h.xRing.Slot((h.consumer + j) & xmask)
		*h.uRing.Slot((h.producer + j) & fmask) = desc.Addr
	}
	h.consumer += n
	h.producer += n
	h.available -= n

	h.xRing.PublishConsumer(h.consumer)
	h.uRing.PublishProducer(h.producer)
	return nil
}

// Kick nudges the kernel to post more RX descriptors if NEED_WAKEUP is
// set on the RX ring.
func (h *RxHandle) Kick() error {
	return h.kick(false)
}

// CommitAndKick is Commit immediately followed by Kick.
func (h *RxHandle) CommitAndKick(n uint32) error {
	if err := h.Commit(n); err != nil {
		return err
	}
	return h.Kick()
}

// SeekAndPeek is Seek(1) followed by Peek(0): the common path for
// reading a single received packet.
func (h *RxHandle) SeekAndPeek() ([]byte, error) {
	if _, err := h.Seek(1); err != nil {
		return nil, err
	}
	return h.Peek(0)
}

// PollWait blocks until the RX ring has data (POLLIN) or timeout
// elapses (nil blocks indefinitely), kicking the kernel first.
func (h *RxHandle) PollWait(timeout *time.Duration) error {
	if err := h.Kick(); err != nil {
		return err
	}
	return h.pollWait(unix.POLLIN, timeout)
}

// Receive reads one packet via SeekAndPeek, copies it into a
// caller-owned slice so it outlives the frame's return to the kernel,
// and commits the frame back to the Fill ring.
func (h *RxHandle) Receive() ([]byte, error) {
	buf, err := h.SeekAndPeek()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	if err := h.Commit(1); err != nil {
		return nil, err
	}
	return out, nil
}

// ReceiveBlocking is Receive, retrying across a PollWait(nil) if
// nothing is immediately available.
func (h *RxHandle) ReceiveBlocking() ([]byte, error) {
	for {
		out, err := h.Receive()
		if err == nil {
			return out, nil
		}
		if err != ErrRingEmpty {
			return nil, err
		}
		if err := h.PollWait(nil); err != nil {
			return nil, err
		}
	}
}

// Close releases this handle's share of the underlying socket. The
// socket, UMEM, and rings are torn down only once both the RxHandle
// and any TxHandle sharing the socket have been closed.
func (h *RxHandle) Close() error {
	return h.close()
}
