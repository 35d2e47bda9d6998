package xdp

import (
	"fmt"
	"log"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// handleCore holds the fields common to TxHandle and RxHandle: the
// shared SocketCore, the primary ring (x_ring: TX-ring for a TxHandle,
// RX-ring for an RxHandle) and auxiliary ring (u_ring: Completion for
// TX, Fill for RX), cached indices, and the raw UMEM bytes. TxHandle
// and RxHandle each embed this and implement their own
// Seek/Peek/Commit with direction-specific semantics — no interface,
// no runtime dispatch on this hot path.
type handleCore struct {
	core   *SocketCore
	xRing  *Ring[Descriptor]
	uRing  *Ring[frameAddr]
	frames []byte

	producer  uint32
	consumer  uint32
	available uint32

	closedFlag atomic.Bool
}

// FrameSize returns the fixed size of a single UMEM frame.
func (h *handleCore) FrameSize() int { return FrameSize }

// Stats retrieves the shared socket's XDP_STATISTICS snapshot. Both a
// TxHandle and an RxHandle sharing a socket see the same counters.
func (h *handleCore) Stats() (Stats, error) { return h.core.Stats() }

// frameBytes returns the byte slice for a frame at the given address,
// truncated to length.
func (h *handleCore) frameBytes(addr uint64, length int) []byte {
	return h.frames[addr : addr+uint64(length)]
}

// closed reports whether Close has already run.
func (h *handleCore) closed() bool { return h.closedFlag.Load() }

// checkClosed returns ErrClosed if Close has already run on this
// handle. Seek/Peek/Commit call this first, before touching any cached
// index, so a closed handle's state is left untouched on failure.
func (h *handleCore) checkClosed() error {
	if h.closedFlag.Load() {
		return ErrClosed
	}
	return nil
}

// close marks the handle closed and releases the shared SocketCore.
// Safe to call at most effectively once; subsequent calls are no-ops.
func (h *handleCore) close() error {
	if h.closedFlag.Swap(true) {
		return nil
	}
	h.core.release()
	return nil
}

// kick issues the zero-length, non-blocking wake-up syscall AF_XDP
// uses to nudge the kernel: sendto for TX, recvfrom for RX. It is
// issued only when the primary ring's NEED_WAKEUP flag is set.
// EAGAIN, EBUSY, and ENOBUFS are benign back-pressure and treated as
// success; ENETDOWN is logged and swallowed; anything else surfaces
// wrapped as ErrIo.
func (h *handleCore) kick(send bool) error {
	if h.xRing.Flags()&xdpRingNeedWakeup == 0 {
		return nil
	}

	var errno syscall.Errno
	if send {
		_, _, errno = syscall.Syscall6(syscall.SYS_SENDTO, uintptr(h.core.fd),
			0, 0, uintptr(unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL), 0, 0)
	} else {
		_, _, errno = syscall.Syscall6(syscall.SYS_RECVFROM, uintptr(h.core.fd),
			0, 0, uintptr(unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL), 0, 0)
	}

	switch errno {
	case 0, unix.EAGAIN, unix.EBUSY, unix.ENOBUFS:
		return nil
	case unix.ENETDOWN:
		log.Printf("xdp: kick: network interface is down")
		return nil
	default:
		return fmt.Errorf("%w: kick: %w", ErrIo, errno)
	}
}

// pollWait blocks until the socket fd is ready per mask (POLLOUT for
// TX, POLLIN for RX) or the timeout elapses. Callers kick before
// calling this so the kernel has a reason to make the fd ready; this
// tolerates spurious wake-ups by re-polling until the requested bit is
// observed.
func (h *handleCore) pollWait(mask int16, timeout *time.Duration) error {
	ms := -1
	if timeout != nil {
		ms = int(timeout.Milliseconds())
	}
	for {
		fds := []unix.PollFd{{Fd: int32(h.core.fd), Events: mask}}
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("%w: poll: %w", ErrIo, err)
		}
		if n == 0 {
			return nil // timeout elapsed
		}
		if fds[0].Revents&mask != 0 {
			return nil
		}
	}
}
