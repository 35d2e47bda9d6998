package xdp

import (
	"fmt"
	"syscall"
	"unsafe"
)

// AF_XDP socket-option surface. golang.org/x/sys/unix does not carry
// struct definitions for these (only the generic socket primitives and
// sockaddr_xdp are used from unix below); the constants and the ABI
// structs below are hand-defined from linux/if_xdp.h, the same way the
// original skeleton defined SOL_XDP and friends locally rather than
// trusting a generated binding for them.
const (
	solXDP = 283

	xdpMmapOffsets         = 1
	xdpRxRing              = 2
	xdpTxRing              = 3
	xdpUmemReg             = 4
	xdpUmemFillRing        = 5
	xdpUmemCompletionRing  = 6
	xdpStatisticsOpt       = 7

	xdpShouldUseSharedUmem = 1 << 0
	xdpCopy                = 1 << 1
	xdpZerocopy            = 1 << 2
	xdpUseNeedWakeup       = 1 << 3

	// xdpRingNeedWakeup is a bit in a ring's flags word, not a sockopt.
	xdpRingNeedWakeup = 1 << 0

	xdpPgoffRxRing             = 0
	xdpPgoffTxRing             = 0x80000000
	xdpUmemPgoffFillRing       = 0x100000000
	xdpUmemPgoffCompletionRing = 0x180000000
)

// xdpRingOffset mirrors struct xdp_ring_offset: the byte offsets, within
// a ring's mmap region, of its producer index, consumer index,
// descriptor array, and flags word.
type xdpRingOffset struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
	Flags    uint64
}

// xdpMmapOffsetsReg mirrors struct xdp_mmap_offsets, returned by
// getsockopt(SOL_XDP, XDP_MMAP_OFFSETS).
type xdpMmapOffsetsReg struct {
	Rx xdpRingOffset
	Tx xdpRingOffset
	Fr xdpRingOffset
	Cr xdpRingOffset
}

// xdpUmemRegReq mirrors struct xdp_umem_reg, the UMEM registration
// descriptor passed to setsockopt(SOL_XDP, XDP_UMEM_REG).
type xdpUmemRegReq struct {
	Addr      uint64
	Len       uint64
	ChunkSize uint32
	Headroom  uint32
	Flags     uint32
	_         uint32 // pad to kernel's 8-byte aligned struct size
}

// xdpStatisticsReg mirrors struct xdp_statistics as returned by
// getsockopt(SOL_XDP, XDP_STATISTICS) on kernels >= 5.9.
type xdpStatisticsReg struct {
	RxDropped            uint64
	RxInvalidDescs       uint64
	TxInvalidDescs       uint64
	RxRingFull           uint64
	RxFillRingEmptyDescs uint64
	TxRingEmptyDescs     uint64
}

// setsockoptRaw issues setsockopt(fd, SOL_XDP, opt, val, len) via the raw
// syscall, bypassing unix's int-only SetsockoptInt helper since several
// AF_XDP options take a struct payload rather than a scalar.
func setsockoptRaw(fd int, opt int, val unsafe.Pointer, size uintptr) error {
	_, _, errno := syscall.Syscall6(
		syscall.SYS_SETSOCKOPT,
		uintptr(fd),
		uintptr(solXDP),
		uintptr(opt),
		uintptr(val),
		size,
		0,
	)
	if errno != 0 {
		return fmt.Errorf("%w: setsockopt(SOL_XDP, %d): %w", ErrIo, opt, errno)
	}
	return nil
}

// getsockoptRaw issues getsockopt(fd, SOL_XDP, opt, val, &len) via the
// raw syscall for the same reason as setsockoptRaw.
func getsockoptRaw(fd int, opt int, val unsafe.Pointer, size uintptr) error {
	length := uint32(size)
	_, _, errno := syscall.Syscall6(
		syscall.SYS_GETSOCKOPT,
		uintptr(fd),
		uintptr(solXDP),
		uintptr(opt),
		uintptr(val),
		uintptr(unsafe.Pointer(&length)),
		0,
	)
	if errno != 0 {
		return fmt.Errorf("%w: getsockopt(SOL_XDP, %d): %w", ErrIo, opt, errno)
	}
	return nil
}

// setRingSize issues the u32-count setsockopt for one of the four
// rings. Fill and Completion rings must carry at least one entry even
// when unused by the configured direction — the kernel enforces this
// minimum.
func setRingSize(fd int, opt int, size uint32) error {
	if size == 0 && (opt == xdpUmemFillRing || opt == xdpUmemCompletionRing) {
		size = 1
	}
	return setsockoptRaw(fd, opt, unsafe.Pointer(&size), unsafe.Sizeof(size))
}

// queryMmapOffsets retrieves the per-ring mmap offsets via
// getsockopt(SOL_XDP, XDP_MMAP_OFFSETS).
func queryMmapOffsets(fd int) (xdpMmapOffsetsReg, error) {
	var offsets xdpMmapOffsetsReg
	err := getsockoptRaw(fd, xdpMmapOffsets, unsafe.Pointer(&offsets), unsafe.Sizeof(offsets))
	return offsets, err
}

// registerUmem registers a mapped UMEM region with the kernel via
// setsockopt(SOL_XDP, XDP_UMEM_REG).
func registerUmem(fd int, addr uintptr, length uint64, chunkSize uint32) error {
	reg := xdpUmemRegReq{
		Addr:      uint64(addr),
		Len:       length,
		ChunkSize: chunkSize,
	}
	return setsockoptRaw(fd, xdpUmemReg, unsafe.Pointer(&reg), unsafe.Sizeof(reg))
}

// queryStatistics retrieves XDP_STATISTICS from the kernel.
func queryStatistics(fd int) (xdpStatisticsReg, error) {
	var stats xdpStatisticsReg
	err := getsockoptRaw(fd, xdpStatisticsOpt, unsafe.Pointer(&stats), unsafe.Sizeof(stats))
	return stats, err
}
