package xdp

import (
	"time"

	"golang.org/x/sys/unix"
)

// TxHandle is the send side of an AF_XDP socket: a single writer may
// stage descriptors into the TX ring and later reclaims their frames
// once the kernel reports them complete via the Completion ring.
//
// A TxHandle is not safe for concurrent use — it implements the
// single-producer half of the single-producer/single-consumer
// protocol spec.md describes, and callers are expected to serialize
// their own access exactly as they would around a raw ring buffer.
type TxHandle struct {
	handleCore
}

// Seek ensures at least n frames are available for Peek/Commit,
// reclaiming completed TX frames from the Completion ring as needed.
// It returns the number of frames actually available, which may be
// less than n if the Completion ring could not supply enough, or
// ErrRingFull if the Completion ring holds nothing new at all.
func (h *TxHandle) Seek(n uint32) (uint32, error) {
	if err := h.checkClosed(); err != nil {
		return 0, err
	}
	if h.available >= n {
		return h.available, nil
	}

	completionTail := h.uRing.Producer() // acquire-load
	if completionTail == h.consumer {
		return 0, ErrRingFull
	}

	for completionTail != h.consumer && h.available < n {
		addr := *h.uRing.Slot(h.consumer)
		*h.xRing.Slot(h.producer+h.available) = Descriptor{Addr: addr}
		h.consumer++
		h.available++
	}
	h.uRing.PublishConsumer(h.consumer)

	return h.available, nil
}

// Peek returns a writable slice over the i-th staged-but-uncommitted
// frame, sized to length bytes. i must be less than the value last
// returned by Seek; length must not exceed FrameSize. The descriptor's
// length field is written eagerly so a subsequent Commit needs no
// further bookkeeping.
func (h *TxHandle) Peek(i uint32, length int) ([]byte, error) {
	if err := h.checkClosed(); err != nil {
		return nil, err
	}
	if i >= h.available {
		return nil, ErrInvalidIndex
	}
	if length < 0 || length > FrameSize {
		return nil, ErrInvalidLength
	}

	slot := h.xRing.Slot((h.producer + i) & h.xRing.Mask())
	slot.Len = uint32(length)
	return h.frameBytes(slot.Addr, length), nil
}

// Commit publishes the first n staged frames to the kernel for
// transmission. n must not exceed the value last returned by Seek.
func (h *TxHandle) Commit(n uint32) error {
	if err := h.checkClosed(); err != nil {
		return err
	}
	if n > h.available {
		return ErrNotAvailable
	}
	h.available -= n
	h.producer += n
	h.xRing.PublishProducer(h.producer)
	return nil
}

// Kick nudges the kernel to drain the TX ring if NEED_WAKEUP is set.
func (h *TxHandle) Kick() error {
	return h.kick(true)
}

// CommitAndKick is Commit immediately followed by Kick, the common
// case for a caller with no reason to batch further sends first.
func (h *TxHandle) CommitAndKick(n uint32) error {
	if err := h.Commit(n); err != nil {
		return err
	}
	return h.Kick()
}

// SeekAndPeek is Seek(1) followed by Peek(0, length): the common path
// for sending a single packet of a known size.
func (h *TxHandle) SeekAndPeek(length int) ([]byte, error) {
	if _, err := h.Seek(1); err != nil {
		return nil, err
	}
	return h.Peek(0, length)
}

// PollWait blocks until the TX ring is writable (POLLOUT) or timeout
// elapses (nil blocks indefinitely), kicking the kernel first.
func (h *TxHandle) PollWait(timeout *time.Duration) error {
	if err := h.Kick(); err != nil {
		return err
	}
	return h.pollWait(unix.POLLOUT, timeout)
}

// Send stages data (preceded by header, if any) into a fresh UMEM
// frame and commits it. header may be nil. In the common header-less
// case, data is copied straight into the Peek-returned slice with no
// intermediate buffer; a non-empty header needs the two pieces
// assembled contiguously first, for which Send borrows a pooled
// scratch buffer that is purely an assembly convenience — it never
// touches UMEM frame ownership, which Seek/Commit alone govern.
func (h *TxHandle) Send(data, header []byte) error {
	total := len(header) + len(data)
	if total > FrameSize {
		return ErrInvalidLength
	}

	if len(header) == 0 {
		frame, err := h.SeekAndPeek(total)
		if err != nil {
			return err
		}
		copy(frame, data)
		return h.Commit(1)
	}

	scratch, err := h.core.scratch.Get()
	if err != nil {
		return err
	}
	defer h.core.scratch.Put(scratch)

	scratch.Write(header)
	scratch.Write(data)

	frame, err := h.SeekAndPeek(total)
	if err != nil {
		return err
	}
	copy(frame, scratch.Data())

	return h.Commit(1)
}

// SendBlocking is Send followed by a PollWait(nil), for callers that
// want the call to return only once the kernel has had a chance to
// drain the frame.
func (h *TxHandle) SendBlocking(data, header []byte) error {
	if err := h.Send(data, header); err != nil {
		return err
	}
	return h.PollWait(nil)
}

// Close releases this handle's share of the underlying socket. The
// socket, UMEM, and rings are torn down only once both the TxHandle
// and any RxHandle sharing the socket have been closed.
func (h *TxHandle) Close() error {
	return h.close()
}
