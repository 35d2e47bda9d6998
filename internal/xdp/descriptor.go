package xdp

// FrameSize is the fixed size in bytes of a single UMEM frame.
const FrameSize = 2048

// FrameCount is the number of frames carved out of the UMEM.
const FrameCount = 4096

// Descriptor names a frame used in the TX and RX rings: its byte
// offset into the UMEM, the length of the packet it carries, and
// kernel/user option bits. Layout matches struct xdp_desc exactly
// (16 bytes, natural alignment) since it is read and written directly
// by the kernel.
type Descriptor struct {
	Addr    uint64
	Len     uint32
	Options uint32
}

// frameAddr is the element type of the Fill and Completion rings: a
// bare frame offset into the UMEM.
type frameAddr = uint64
