package xdp

import (
	"sync/atomic"
	"unsafe"
)

// newTestRing builds a Ring[T] over a plain heap-allocated region
// instead of a real mmap'd kernel mapping, so the ring protocol can be
// exercised without a socket, root privileges, or a live NIC. n must
// be a power of two.
func newTestRing[T any](n uint32) *Ring[T] {
	var zero T
	elemSize := unsafe.Sizeof(zero)
	const headerSize = 64 // plenty of room for 3 naturally-aligned uint32 words
	region := make([]byte, headerSize+uintptr(n)*elemSize)
	base := unsafe.Pointer(&region[0])

	return &Ring[T]{
		region:   region,
		producer: (*atomic.Uint32)(unsafe.Add(base, 0)),
		consumer: (*atomic.Uint32)(unsafe.Add(base, 8)),
		flags:    (*atomic.Uint32)(unsafe.Add(base, 16)),
		desc:     unsafe.Add(base, headerSize),
		len:      n,
		mask:     n - 1,
	}
}

// newTestTxHandle builds a TxHandle wired to plain in-memory rings
// with xLen frames, pre-seeded exactly as socket_core.go's seedTxRing
// would. It returns the handle and the Completion ring so a test can
// play the kernel's part (move frames from TX to Completion).
func newTestTxHandle(xLen uint32) (*TxHandle, *Ring[frameAddr]) {
	xRing := newTestRing[Descriptor](xLen)
	seedTxRing(xRing, 0)
	crRing := newTestRing[frameAddr](xLen)

	h := &TxHandle{handleCore: handleCore{
		xRing:     xRing,
		uRing:     crRing,
		frames:    make([]byte, uint64(xLen)*FrameSize),
		available: xLen,
	}}
	return h, crRing
}

// newTestRxHandle builds an RxHandle wired to plain in-memory rings
// with xLen frames. The Fill ring starts fully seeded and published,
// matching socket_core.go's construction sequence. It returns the
// handle and the RX ring so a test can play the kernel's part
// (publish received descriptors).
func newTestRxHandle(xLen uint32) (*RxHandle, *Ring[Descriptor]) {
	xRing := newTestRing[Descriptor](xLen)
	frRing := newTestRing[frameAddr](xLen)
	seedFillRing(frRing, 0)
	frRing.PublishProducer(frRing.Len())

	h := &RxHandle{handleCore: handleCore{
		xRing:    xRing,
		uRing:    frRing,
		frames:   make([]byte, uint64(xLen)*FrameSize),
		producer: frRing.Len(),
	}}
	return h, xRing
}

// kernelCompleteAll simulates the kernel draining the entire TX ring
// into the Completion ring: every descriptor currently published in
// x_ring (up to producer) is copied into cr_ring and cr_ring's
// producer is advanced to match.
func kernelCompleteAll(x *Ring[Descriptor], cr *Ring[frameAddr]) {
	n := x.Producer()
	for i := uint32(0); i < n; i++ {
		*cr.Slot(i) = x.Slot(i).Addr
	}
	cr.PublishProducer(n)
}

// kernelPublishRx simulates the kernel receiving len(payloads) packets:
// it takes that many frame addresses off the Fill ring (in order),
// writes each payload into the corresponding UMEM frame, posts a
// descriptor into the RX ring, and publishes the RX ring's producer.
// It continues from the RX ring's current producer; since this fake
// kernel takes one Fill entry per packet, that index is also its Fill
// ring read position.
func kernelPublishRx(x *Ring[Descriptor], fr *Ring[frameAddr], frames []byte, payloads [][]byte) {
	base := x.Producer()
	for i, p := range payloads {
		idx := base + uint32(i)
		addr := *fr.Slot(idx)
		copy(frames[addr:addr+uint64(len(p))], p)
		*x.Slot(idx) = Descriptor{Addr: addr, Len: uint32(len(p))}
	}
	x.PublishProducer(base + uint32(len(payloads)))
}
