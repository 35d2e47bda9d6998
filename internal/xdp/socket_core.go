package xdp

import (
	"log"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sudachen/xdp-go/internal/memory"
)

// scratchSlots sizes the header+payload assembly pool backing
// TxHandle.Send — deliberately small and independent of FrameCount,
// since it never holds frames the ring protocol tracks, only a
// transient copy a caller's header and payload pass through on the
// way into a UMEM frame.
const scratchSlots = 64

// SocketCore owns the AF_XDP socket fd and the UMEM mapping shared by
// at most one TxHandle and one RxHandle. Its refcount is incremented
// when a handle is constructed and decremented on each handle's Close;
// the last Close tears down rings, then UMEM, then the socket fd, in
// that order.
type SocketCore struct {
	fd   int
	umem *OwnedMap

	txRing Ring[Descriptor]
	rxRing Ring[Descriptor]
	frRing Ring[frameAddr]
	crRing Ring[frameAddr]

	scratchMem *memory.MemoryPool
	scratch    *memory.BufferPool

	refs atomic.Int32
}

// Create performs the eight-step AF_XDP construction procedure: open
// the socket, register the UMEM, set ring sizes, query ring offsets,
// map the needed rings, pre-seed them, bind, and wrap the result in
// directional handles. Any step failing unwinds everything opened so
// far and returns the wrapped OS error.
func Create(ifIndex, queueID uint32, direction Direction, cfg Config) (tx *TxHandle, rx *RxHandle, err error) {
	txSize, rxSize := frameSplit(direction)

	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, wrapIo("socket(AF_XDP)", err)
	}
	core := &SocketCore{fd: fd}
	defer func() {
		if err != nil {
			core.teardown()
		}
	}()

	umem, err := MapOwned(FrameCount*FrameSize, mapConfig{HugePage: cfg.hugePagePolicy(), NUMANode: cfg.NUMANode})
	if err != nil {
		return nil, nil, err
	}
	core.umem = umem

	if err = registerUmem(fd, umemAddr(umem), uint64(umem.Len()), FrameSize); err != nil {
		return nil, nil, err
	}

	// Completion ring tracks the TX side's frame count (it recycles TX
	// frames); Fill ring tracks the RX side's (it supplies RX frames).
	// An inactive side still gets the kernel's 1-entry minimum via
	// setRingSize, and is never passed to mmapRing, so its Ring stays the
	// unmapped zero-value (len 0) sentinel.
	if err = setRingSize(fd, xdpUmemCompletionRing, txSize); err != nil {
		return nil, nil, err
	}
	if err = setRingSize(fd, xdpUmemFillRing, rxSize); err != nil {
		return nil, nil, err
	}
	if txSize > 0 {
		if err = setRingSize(fd, xdpTxRing, txSize); err != nil {
			return nil, nil, err
		}
	}
	if rxSize > 0 {
		if err = setRingSize(fd, xdpRxRing, rxSize); err != nil {
			return nil, nil, err
		}
	}

	offsets, err := queryMmapOffsets(fd)
	if err != nil {
		return nil, nil, err
	}

	if txSize > 0 {
		core.txRing, err = mmapRing[Descriptor](fd, ringTx, offsets.Tx, txSize)
		if err != nil {
			return nil, nil, err
		}
		core.crRing, err = mmapRing[frameAddr](fd, ringCompletion, offsets.Cr, txSize)
		if err != nil {
			return nil, nil, err
		}
		seedTxRing(&core.txRing, 0)

		poolCfg := memory.DefaultPoolConfig()
		poolCfg.NumSlots = scratchSlots
		poolCfg.SlotSize = FrameSize
		if cfg.NUMANode != nil {
			poolCfg.NUMANodeID = *cfg.NUMANode
		}
		scratchMem, err := memory.NewMemoryPool(poolCfg)
		if err != nil {
			return nil, nil, err
		}
		core.scratchMem = scratchMem
		core.scratch = memory.NewBufferPool(scratchMem)
	}

	if rxSize > 0 {
		core.rxRing, err = mmapRing[Descriptor](fd, ringRx, offsets.Rx, rxSize)
		if err != nil {
			return nil, nil, err
		}
		core.frRing, err = mmapRing[frameAddr](fd, ringFill, offsets.Fr, rxSize)
		if err != nil {
			return nil, nil, err
		}
		seedFillRing(&core.frRing, txSize)
		core.frRing.PublishProducer(core.frRing.Len())
	}

	sa := &unix.SockaddrXDP{
		Flags:   cfg.bindFlags(),
		Ifindex: ifIndex,
		QueueID: queueID,
	}
	if err = unix.Bind(fd, sa); err != nil {
		return nil, nil, wrapIo("bind", err)
	}

	if txSize > 0 {
		core.refs.Add(1)
		tx = &TxHandle{handleCore: handleCore{
			core:      core,
			xRing:     &core.txRing,
			uRing:     &core.crRing,
			frames:    umem.Bytes(),
			available: txSize,
		}}
	}
	if rxSize > 0 {
		core.refs.Add(1)
		rx = &RxHandle{handleCore: handleCore{
			core:   core,
			xRing:  &core.rxRing,
			uRing:  &core.frRing,
			frames: umem.Bytes(),
			// Fill ring was already fully seeded and its producer
			// published above; the handle's own producer cursor must
			// start in sync with that, not at zero.
			producer: core.frRing.Len(),
		}}
	}

	return tx, rx, nil
}

// frameSplit implements spec.md §4.4's frame-count allocation table.
func frameSplit(direction Direction) (txSize, rxSize uint32) {
	switch direction {
	case DirectionTx:
		return FrameCount, 0
	case DirectionRx:
		return 0, FrameCount
	default:
		return FrameCount / 2, FrameCount / 2
	}
}

// seedTxRing pre-fills a TX ring's descriptors with every frame in
// [offset, offset+len), matching spec.md §4.4 step 6.
func seedTxRing(r *Ring[Descriptor], offset uint32) {
	if r.Len() == 0 {
		return
	}
	for i := uint32(0); i < r.Len(); i++ {
		*r.Slot(i) = Descriptor{Addr: uint64(i+offset) * FrameSize}
	}
}

// seedFillRing pre-fills a Fill ring's frame-address slots with every
// frame in [offset, offset+len) so the kernel has frames to receive
// into immediately after bind.
func seedFillRing(r *Ring[frameAddr], offset uint32) {
	if r.Len() == 0 {
		return
	}
	for i := uint32(0); i < r.Len(); i++ {
		*r.Slot(i) = uint64(i+offset) * FrameSize
	}
}

// Stats retrieves XDP_STATISTICS from the kernel. It is a read-only
// kernel query, never touching ring state.
func (c *SocketCore) Stats() (Stats, error) {
	raw, err := queryStatistics(c.fd)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		RxDropped:            raw.RxDropped,
		RxInvalidDescs:       raw.RxInvalidDescs,
		TxInvalidDescs:       raw.TxInvalidDescs,
		RxRingFull:           raw.RxRingFull,
		RxFillRingEmptyDescs: raw.RxFillRingEmptyDescs,
		TxRingEmptyDescs:     raw.TxRingEmptyDescs,
	}, nil
}

// release decrements the refcount; the last releaser tears everything
// down. Handles call this from Close.
func (c *SocketCore) release() {
	if c.refs.Add(-1) == 0 {
		c.teardown()
	}
}

func (c *SocketCore) teardown() {
	for _, r := range []interface{ unmap() error }{&c.txRing, &c.rxRing, &c.frRing, &c.crRing} {
		if err := r.unmap(); err != nil {
			log.Printf("xdp: %v", err)
		}
	}
	if c.umem != nil {
		c.umem.Unmap()
	}
	if c.scratchMem != nil {
		if err := c.scratchMem.Close(); err != nil {
			log.Printf("xdp: close scratch pool: %v", err)
		}
	}
	if c.fd != 0 {
		if err := unix.Close(c.fd); err != nil {
			log.Printf("xdp: close socket fd: %v", err)
		}
		c.fd = 0
	}
}

// umemAddr returns the base address of the mapped UMEM region as the
// kernel expects it in struct xdp_umem_reg: the literal virtual address
// of the mmap'd memory, not an offset.
func umemAddr(m *OwnedMap) uintptr {
	b := m.Bytes()
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
