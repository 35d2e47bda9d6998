package xdp

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ringKind names one of the four AF_XDP rings, tying together its
// setsockopt option, its getsockopt offset struct, and its mmap
// page-offset constant.
type ringKind int

const (
	ringRx ringKind = iota
	ringTx
	ringFill
	ringCompletion
)

func (k ringKind) sizeOpt() int {
	switch k {
	case ringRx:
		return xdpRxRing
	case ringTx:
		return xdpTxRing
	case ringFill:
		return xdpUmemFillRing
	default:
		return xdpUmemCompletionRing
	}
}

func (k ringKind) pgoff() int64 {
	switch k {
	case ringRx:
		return xdpPgoffRxRing
	case ringTx:
		return xdpPgoffTxRing
	case ringFill:
		return xdpUmemPgoffFillRing
	default:
		return xdpUmemPgoffCompletionRing
	}
}

func (k ringKind) offsetsOf(m xdpMmapOffsetsReg) xdpRingOffset {
	switch k {
	case ringRx:
		return m.Rx
	case ringTx:
		return m.Tx
	case ringFill:
		return m.Fr
	default:
		return m.Cr
	}
}

// Ring is a generic shared-memory SPSC ring: an atomic producer index,
// an atomic consumer index, an atomic flags word, and a fixed-length
// array of T, all living inside a single mmap'd region the kernel also
// reads and writes. T is either Descriptor (TX/RX rings) or uint64, the
// frame-address type (Fill/Completion rings).
//
// A Ring with len 0 is the sentinel for "not mapped for this
// direction"; it must never be read or written.
type Ring[T any] struct {
	region   []byte
	producer *atomic.Uint32
	consumer *atomic.Uint32
	flags    *atomic.Uint32
	desc     unsafe.Pointer
	len      uint32
	mask     uint32
}

// mmapRing maps the given ring at the kernel-reported offsets, sized to
// hold n elements of T. n must be a power of two (or zero for an unused
// ring, in which case the sentinel zero-value Ring is returned without
// any syscall).
func mmapRing[T any](fd int, kind ringKind, offsets xdpRingOffset, n uint32) (Ring[T], error) {
	if n == 0 {
		return Ring[T]{}, nil
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	mapSize := offsets.Desc + uint64(n)*uint64(elemSize)

	region, err := unix.Mmap(fd, kind.pgoff(), int(mapSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return Ring[T]{}, wrapIo("mmap ring", err)
	}

	base := unsafe.Pointer(&region[0])
	return Ring[T]{
		region:   region,
		producer: (*atomic.Uint32)(unsafe.Add(base, offsets.Producer)),
		consumer: (*atomic.Uint32)(unsafe.Add(base, offsets.Consumer)),
		flags:    (*atomic.Uint32)(unsafe.Add(base, offsets.Flags)),
		desc:     unsafe.Add(base, offsets.Desc),
		len:      n,
		mask:     n - 1,
	}, nil
}

// Len returns the ring's capacity (always a power of two, or zero for
// an unmapped sentinel ring).
func (r *Ring[T]) Len() uint32 { return r.len }

// Mask returns len-1, used to turn a free-running index into a slot.
func (r *Ring[T]) Mask() uint32 { return r.mask }

// Producer acquire-loads the producer index.
func (r *Ring[T]) Producer() uint32 { return r.producer.Load() }

// Consumer acquire-loads the consumer index.
func (r *Ring[T]) Consumer() uint32 { return r.consumer.Load() }

// Flags acquire-loads the flags word. The bit of interest is
// xdpRingNeedWakeup.
func (r *Ring[T]) Flags() uint32 { return r.flags.Load() }

// PublishProducer release-stores v into the producer index, making any
// slot writes up to v visible to the kernel.
func (r *Ring[T]) PublishProducer(v uint32) { r.producer.Store(v) }

// PublishConsumer release-stores v into the consumer index.
func (r *Ring[T]) PublishConsumer(v uint32) { r.consumer.Store(v) }

// Slot returns a pointer to desc[i & mask]. Bounds are never out of
// range by construction since the mask always yields an in-range slot;
// the assertion below catches use of a ring that was never mapped
// (len == 0 and mask == 0, so every index would otherwise alias slot 0
// of an array that does not exist).
func (r *Ring[T]) Slot(i uint32) *T {
	if r.len == 0 {
		panic("xdp: Slot on unmapped ring")
	}
	idx := i & r.mask
	var zero T
	return (*T)(unsafe.Add(r.desc, uintptr(idx)*unsafe.Sizeof(zero)))
}

// unmap releases the ring's mmap region. A ring with len 0 was never
// mapped and unmap is a no-op.
func (r *Ring[T]) unmap() error {
	if r.len == 0 || r.region == nil {
		return nil
	}
	return unix.Munmap(r.region)
}

func wrapIo(op string, err error) error {
	return &ioError{op: op, err: err}
}

type ioError struct {
	op  string
	err error
}

func (e *ioError) Error() string { return "xdp: " + e.op + ": " + e.err.Error() }
func (e *ioError) Unwrap() []error { return []error{ErrIo, e.err} }
