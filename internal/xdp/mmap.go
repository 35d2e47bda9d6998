package xdp

import (
	"bufio"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sudachen/xdp-go/internal/memory"
)

// HugePagePolicy controls whether a mapping should be backed by huge
// pages.
type HugePagePolicy int

const (
	// HugePageAuto probes /proc/meminfo and uses huge pages only if a
	// 2MiB huge page size is configured and at least one is free.
	HugePageAuto HugePagePolicy = iota
	// HugePageAlways requests huge pages; a failure to obtain them is
	// propagated as an error rather than silently falling back.
	HugePageAlways
	// HugePageNever always uses the system base page size.
	HugePageNever
)

const hugePageSize = 2 * 1024 * 1024

// OwnedMap is a private, anonymous, page-aligned memory mapping this
// module owns end to end: it is released by Unmap, never by the
// garbage collector.
type OwnedMap struct {
	data []byte
}

// mapConfig bundles the inputs MapOwned needs beyond size: huge-page
// policy and an optional NUMA node to bias first-touch placement.
type mapConfig struct {
	HugePage HugePagePolicy
	NUMANode *int
}

// MapOwned allocates a private, anonymous region of at least size
// bytes per the given huge-page policy, optionally binding the
// allocating thread to a NUMA node for the duration of the mapping
// call.
func MapOwned(size int, cfg mapConfig) (*OwnedMap, error) {
	useHuge, err := resolveHugePagePolicy(cfg.HugePage)
	if err != nil {
		return nil, err
	}

	pageSize := os.Getpagesize()
	if useHuge {
		pageSize = hugePageSize
	}
	aligned := (size + pageSize - 1) &^ (pageSize - 1)

	if cfg.NUMANode != nil {
		unbind := bindCurrentThreadToNode(*cfg.NUMANode)
		defer unbind()
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	if useHuge {
		flags |= unix.MAP_HUGETLB
	}

	data, err := unix.Mmap(-1, 0, aligned, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, wrapIo("mmap umem", err)
	}

	if err := unix.Mlock(data); err != nil {
		log.Printf("xdp: mlock failed, umem pages may be swappable: %v", err)
	}

	return &OwnedMap{data: data}, nil
}

// Bytes returns the mapped region.
func (m *OwnedMap) Bytes() []byte { return m.data }

// Len returns the aligned size actually mapped.
func (m *OwnedMap) Len() int { return len(m.data) }

// Unmap releases the region. A failed unmap is logged, never
// propagated — the mapping is gone either way from the caller's
// perspective, and there is nothing a caller could usefully do with
// the error during teardown.
func (m *OwnedMap) Unmap() {
	if m == nil || m.data == nil {
		return
	}
	if err := unix.Munmap(m.data); err != nil {
		log.Printf("xdp: munmap failed: %v", err)
	}
	m.data = nil
}

// resolveHugePagePolicy turns a policy into a concrete use-huge-pages
// decision, probing /proc/meminfo for Auto.
func resolveHugePagePolicy(policy HugePagePolicy) (bool, error) {
	switch policy {
	case HugePageNever:
		return false, nil
	case HugePageAlways:
		return true, nil
	default:
		info, err := probeHugePages()
		if err != nil {
			return false, nil
		}
		return info.sizeKB == hugePageSize/1024 && info.free >= 1, nil
	}
}

type hugePageInfo struct {
	sizeKB int64
	total  int64
	free   int64
}

// probeHugePages parses /proc/meminfo for the Hugepagesize,
// HugePages_Total, and HugePages_Free keys. A failure to open or read
// the file is reported to the caller, who for Auto policy treats it as
// "huge pages unavailable" rather than propagating it — huge-page
// placement is an optimization, never a correctness requirement. A
// value that does not parse as an integer is left at zero, which Auto
// likewise reads as "unavailable".
func probeHugePages() (hugePageInfo, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return hugePageInfo{}, err
	}
	defer f.Close()

	var info hugePageInfo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.TrimSuffix(value, " kB")
		switch key {
		case "Hugepagesize":
			info.sizeKB, _ = strconv.ParseInt(value, 10, 64)
		case "HugePages_Total":
			info.total, _ = strconv.ParseInt(value, 10, 64)
		case "HugePages_Free":
			info.free, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	if err := scanner.Err(); err != nil {
		return hugePageInfo{}, err
	}
	return info, nil
}

// bindCurrentThreadToNode locks the calling goroutine to its OS thread
// and restricts its CPU affinity to the given NUMA node's CPU set for
// the duration of a first-touch-sensitive allocation. The returned
// function restores unrestricted scheduling and unlocks the thread.
// Binding is best-effort: any failure is logged and treated as a no-op,
// matching the policy already applied to failed munmap/mlock calls.
func bindCurrentThreadToNode(node int) func() {
	info := memory.GetNUMAInfo()
	if !info.Available {
		return func() {}
	}
	cpus, ok := info.CPUsPerNode[node]
	if !ok || len(cpus) == 0 {
		log.Printf("xdp: no CPUs found for NUMA node %d, skipping placement", node)
		return func() {}
	}

	runtime.LockOSThread()
	var orig unix.CPUSet
	haveOrig := unix.SchedGetaffinity(0, &orig) == nil
	var set unix.CPUSet
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Printf("xdp: sched_setaffinity for NUMA node %d failed: %v", node, err)
	}
	return func() {
		if haveOrig {
			if err := unix.SchedSetaffinity(0, &orig); err != nil {
				log.Printf("xdp: restoring CPU affinity failed: %v", err)
			}
		}
		runtime.UnlockOSThread()
	}
}
