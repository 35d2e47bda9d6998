package xdp

// Stats is the kernel's XDP_STATISTICS view of a socket: counters for
// drops and invalid descriptors on both the RX and TX paths. It is a
// point-in-time snapshot obtained via getsockopt and never mutates
// ring state.
type Stats struct {
	RxDropped            uint64
	RxInvalidDescs       uint64
	TxInvalidDescs       uint64
	RxRingFull           uint64
	RxFillRingEmptyDescs uint64
	TxRingEmptyDescs     uint64
}
