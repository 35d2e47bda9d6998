package xdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudachen/xdp-go/internal/memory"
)

func newScratchPoolForTest(t *testing.T) *memory.BufferPool {
	t.Helper()
	cfg := memory.DefaultPoolConfig()
	cfg.NumSlots = 4
	cfg.SlotSize = FrameSize
	mp, err := memory.NewMemoryPool(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Close() })
	return memory.NewBufferPool(mp)
}

// S1: TX send-then-reclaim.
func TestTxSeekReclaimsAfterKernelCompletion(t *testing.T) {
	h, cr := newTestTxHandle(8)

	n, err := h.Seek(8)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	require.NoError(t, h.Commit(8))

	kernelCompleteAll(h.xRing, cr)

	n, err = h.Seek(1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 1, h.consumer)
}

// S2: TX ring-full.
func TestTxSeekRingFullWithNoKernelProgress(t *testing.T) {
	h, _ := newTestTxHandle(4)

	n, err := h.Seek(4)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	require.NoError(t, h.Commit(4))

	_, err = h.Seek(1)
	assert.ErrorIs(t, err, ErrRingFull)
}

// S5: peek length validation, and the "failed operation leaves state
// unchanged" invariant from §7.
func TestTxPeekInvalidLengthLeavesStateUnchanged(t *testing.T) {
	h, _ := newTestTxHandle(4)

	_, err := h.Seek(1)
	require.NoError(t, err)

	before := h.available
	_, err = h.Peek(0, FrameSize+1)
	assert.ErrorIs(t, err, ErrInvalidLength)
	assert.Equal(t, before, h.available)
}

// S6: send composed, via the scratch-pool path (non-empty header).
func TestTxSendComposesHeaderAndData(t *testing.T) {
	h, _ := newTestTxHandle(4)
	h.core = &SocketCore{scratch: newScratchPoolForTest(t)}

	header := []byte{0xEE, 0xEE}
	data := []byte{0x01, 0x02, 0x03}
	require.NoError(t, h.Send(data, header))

	slot := h.xRing.Slot(0)
	assert.EqualValues(t, 5, slot.Len)
	assert.Equal(t, append(append([]byte{}, header...), data...), h.frames[slot.Addr:slot.Addr+5])
	assert.EqualValues(t, 1, h.xRing.Producer())
}

// Send with no header takes the direct-copy fast path and never
// touches the scratch pool — a nil core.scratch must not matter.
func TestTxSendWithoutHeaderSkipsScratchPool(t *testing.T) {
	h, _ := newTestTxHandle(4)
	h.core = &SocketCore{}

	data := []byte{0x01, 0x02, 0x03}
	require.NoError(t, h.Send(data, nil))

	slot := h.xRing.Slot(0)
	assert.EqualValues(t, 3, slot.Len)
	assert.Equal(t, data, h.frames[slot.Addr:slot.Addr+3])
}

// Property 4: commit/seek inverse.
func TestTxCommitSeekInverse(t *testing.T) {
	h, _ := newTestTxHandle(8)

	k, err := h.Seek(5)
	require.NoError(t, err)
	require.GreaterOrEqual(t, k, uint32(5))

	require.NoError(t, h.Commit(5))
	assert.EqualValues(t, 3, h.available)
	assert.EqualValues(t, 5, h.producer)
}

// Property 3: seek idempotence under no kernel progress.
func TestTxSeekIdempotentWithoutKernelProgress(t *testing.T) {
	h, _ := newTestTxHandle(8)
	require.NoError(t, h.Commit(8))

	first, err1 := h.Seek(1)
	second, err2 := h.Seek(1)

	assert.Equal(t, first, second)
	assert.Equal(t, err1, err2)
}

// Seek/Peek/Commit all reject use after Close, leaving cached state
// untouched.
func TestTxOperationsFailAfterClose(t *testing.T) {
	h, _ := newTestTxHandle(4)
	h.core = &SocketCore{}
	h.closedFlag.Store(true)

	before := h.available
	_, err := h.Seek(1)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = h.Peek(0, 8)
	assert.ErrorIs(t, err, ErrClosed)

	err = h.Commit(1)
	assert.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, before, h.available)
}
