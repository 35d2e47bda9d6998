package xdp

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Create talks to the kernel (AF_XDP socket, UMEM registration, mmap,
// bind) and needs CAP_NET_RAW plus a queue on a real NIC to succeed end
// to end, so the Create failure-path test below runs only as root;
// without root only frameSplit's allocation table is checked. The ring
// seeding Create performs (seedTxRing, seedFillRing) is exercised by
// tx_test.go/rx_test.go against the in-memory ring harness; socket
// setup and teardown are not.

func TestCreateFailsOnInvalidInterfaceIndex(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root for AF_XDP socket creation")
	}

	tx, rx, err := Create(0, 0, DirectionTx, Config{})
	assert.Error(t, err)
	assert.Nil(t, tx)
	assert.Nil(t, rx)
}

func TestFrameSplitAllocation(t *testing.T) {
	tx, rx := frameSplit(DirectionTx)
	assert.EqualValues(t, FrameCount, tx)
	assert.EqualValues(t, 0, rx)

	tx, rx = frameSplit(DirectionRx)
	assert.EqualValues(t, 0, tx)
	assert.EqualValues(t, FrameCount, rx)

	tx, rx = frameSplit(DirectionBoth)
	assert.EqualValues(t, FrameCount/2, tx)
	assert.EqualValues(t, FrameCount/2, rx)
}
