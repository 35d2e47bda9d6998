// Package main is the entry point for the Go backend server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sudachen/xdp-go/internal/config"
	"github.com/sudachen/xdp-go/internal/memory"
	"github.com/sudachen/xdp-go/internal/server"
	"github.com/sudachen/xdp-go/internal/xdp"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Go high-performance backend...")

	// Load configuration
	cfg := config.Load()

	log.Printf("Configuration loaded:")
	log.Printf("  Host: %s", cfg.ServerHost)
	log.Printf("  Port: %d", cfg.ServerPort)
	log.Printf("  NUMA Enabled: %v", cfg.NUMAEnabled)
	log.Printf("  XDP Enabled: %v", cfg.XDPEnabled)

	// Set GOMAXPROCS based on available CPUs
	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	log.Printf("  GOMAXPROCS: %d", numCPU)

	// Initialize NUMA if enabled
	if cfg.NUMAEnabled {
		initNUMA()
	}

	// Set memlock rlimit for BPF if XDP is enabled
	var xdpSocket server.XDPSocket
	var xdpProg *xdp.XDPProgram
	if cfg.XDPEnabled {
		if err := xdp.SetRLimitMemlock(); err != nil {
			log.Printf("Warning: Failed to set memlock rlimit: %v", err)
		}

		if cfg.XDPProgramPath != "" {
			prog, err := xdp.LoadXDPProgram(xdp.XDPConfig{
				InterfaceName: cfg.XDPInterface,
				Mode:          xdp.ParseXDPMode(cfg.XDPMode),
				ProgramPath:   cfg.XDPProgramPath,
			})
			if err != nil {
				log.Printf("Warning: XDP program not loaded: %v", err)
			} else {
				xdpProg = prog
				log.Printf("XDP program %s attached to %s", cfg.XDPProgramPath, cfg.XDPInterface)
			}
		}

		tx, rx, err := createXDPSocket(cfg)
		if err != nil {
			log.Printf("Warning: XDP socket not created: %v", err)
		} else {
			// xdpSocket stays a nil interface unless a handle was
			// actually constructed: a *xdp.TxHandle(nil) boxed into
			// the interface would be non-nil but panic on use.
			if tx != nil {
				xdpSocket = tx
			} else if rx != nil {
				xdpSocket = rx
			}
			log.Printf("XDP socket ready on %s queue %d (direction=%s)", cfg.XDPInterface, cfg.XDPQueueID, cfg.XDPDirection)
		}
	}

	// Create and start server
	srv, err := server.NewServer(cfg, xdpSocket)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s:%d", cfg.ServerHost, cfg.ServerPort)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if xdpProg != nil {
		if err := xdpProg.Detach(); err != nil {
			log.Printf("Warning: failed to detach XDP program: %v", err)
		}
	}

	log.Println("Server stopped")
}

// createXDPSocket resolves the configured interface and constructs the
// AF_XDP socket per the configured direction and policy knobs.
func createXDPSocket(cfg *config.Config) (*xdp.TxHandle, *xdp.RxHandle, error) {
	ifIndex, err := xdp.GetInterfaceIndex(cfg.XDPInterface)
	if err != nil {
		return nil, nil, err
	}

	var direction xdp.Direction
	switch cfg.XDPDirection {
	case "tx":
		direction = xdp.DirectionTx
	case "rx":
		direction = xdp.DirectionRx
	default:
		direction = xdp.DirectionBoth
	}

	sockCfg := xdp.Config{
		ZeroCopy:   cfg.XDPZeroCopy,
		NeedWakeup: cfg.XDPNeedWakeup,
	}
	if cfg.HugepagesEnabled {
		sockCfg.HugePage = boolPtr(true)
	}
	if cfg.NUMAEnabled {
		node := cfg.NUMANodeID
		sockCfg.NUMANode = &node
	}

	return xdp.Create(uint32(ifIndex), uint32(cfg.XDPQueueID), direction, sockCfg)
}

func boolPtr(b bool) *bool { return &b }

// initNUMA initializes NUMA-aware settings.
func initNUMA() {
	info := memory.GetNUMAInfo()

	if !info.Available {
		log.Println("NUMA: Not available on this system")
		return
	}

	log.Printf("NUMA: Available with %d nodes", info.NodeCount)
	log.Printf("NUMA: Current node: %d", info.CurrentNode)

	// Log memory per node
	for node, memMB := range info.MemoryMB {
		log.Printf("NUMA: Node %d has %d MB memory", node, memMB)
	}

	// Log CPUs per node
	for node, cpus := range info.CPUsPerNode {
		log.Printf("NUMA: Node %d has CPUs %v", node, cpus)
	}

	// Note: NUMA binding is handled at the allocator level
	log.Println("NUMA: Ready for NUMA-aware memory allocation")
}
