package xdp

// Direction selects which ring pair(s) a socket is constructed with.
type Direction int

const (
	// DirectionTx allocates the full frame pool to the TX/Completion
	// pair; no RX/Fill rings are mapped.
	DirectionTx Direction = iota
	// DirectionRx allocates the full frame pool to the RX/Fill pair; no
	// TX/Completion rings are mapped.
	DirectionRx
	// DirectionBoth splits the frame pool evenly between both pairs.
	DirectionBoth
)

// Config holds the tri-state policy knobs spec.md exposes as public
// configuration: zero-copy, huge-page, and need-wakeup. Each is a
// *bool rather than a plain bool so "unset" (nil, kernel/auto default)
// is distinguishable from an explicit true/false, mirroring the
// grounding source's Option<bool>.
type Config struct {
	// ZeroCopy: true requests XDP_ZEROCOPY, false forces XDP_COPY, nil
	// lets the kernel decide.
	ZeroCopy *bool
	// HugePage: true/false pin the policy to Always/Never; nil probes
	// /proc/meminfo (Auto).
	HugePage *bool
	// NeedWakeup: true/false explicitly set or clear
	// XDP_USE_NEED_WAKEUP; nil defaults to true.
	NeedWakeup *bool
	// NUMANode, if non-nil, biases UMEM first-touch placement to the
	// given node. Unrelated to ring-protocol correctness.
	NUMANode *int
}

func boolPtr(b bool) *bool { return &b }

func (c Config) hugePagePolicy() HugePagePolicy {
	if c.HugePage == nil {
		return HugePageAuto
	}
	if *c.HugePage {
		return HugePageAlways
	}
	return HugePageNever
}

func (c Config) needWakeup() bool {
	if c.NeedWakeup == nil {
		return true
	}
	return *c.NeedWakeup
}

func (c Config) bindFlags() uint16 {
	var flags uint16
	if c.needWakeup() {
		flags |= xdpUseNeedWakeup
	}
	switch {
	case c.ZeroCopy == nil:
		// kernel default
	case *c.ZeroCopy:
		flags |= xdpZerocopy
	default:
		flags |= xdpCopy
	}
	return flags
}
