package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tombabolewski/vidaa-control/internal/logging"
)

const (
	// DefaultScanTimeout is the default timeout for device discovery.
	DefaultScanTimeout = 10 * time.Second

	// DefaultControlPort is the TV's broker port used when an
	// announcement does not name one.
	DefaultControlPort = 36669
)

// DiscoveryError reports a transport-level failure to transmit discovery
// probes. "No devices found" is not a DiscoveryError; an empty scan result
// is a valid outcome.
type DiscoveryError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// probeLeg is one discovery probe: it emits descriptors on found until
// ctx expires, returning an error only when it could not transmit.
type probeLeg struct {
	name string
	run  func(ctx context.Context, found chan<- *Descriptor) error
}

// Scanner runs network scans for Vidaa TVs.
type Scanner struct {
	// Timeout is the maximum time one scan collects responses.
	Timeout time.Duration

	// BroadcastPort overrides the UDP discovery port (tests).
	BroadcastPort int

	legs []probeLeg
}

// NewScanner creates a scanner with default settings.
func NewScanner() *Scanner {
	s := &Scanner{
		Timeout:       DefaultScanTimeout,
		BroadcastPort: broadcastPort,
	}
	s.legs = []probeLeg{
		{name: "mdns", run: s.browseMDNS},
		{name: "broadcast", run: s.probeBroadcast},
	}
	return s
}

// Scan discovers TVs on the local network.
func (s *Scanner) Scan() ([]*Descriptor, error) {
	return s.ScanWithContext(context.Background())
}

// ScanWithContext discovers TVs, honoring ctx for early cancellation.
// Both probe legs run in parallel; results are merged and deduplicated by
// IP address, keeping the most recently seen response per address.
func (s *Scanner) ScanWithContext(ctx context.Context) ([]*Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Descriptor)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var legErrs []error

	legs := s.legs
	if len(legs) == 0 {
		legs = []probeLeg{
			{name: "mdns", run: s.browseMDNS},
			{name: "broadcast", run: s.probeBroadcast},
		}
	}

	for _, leg := range legs {
		wg.Add(1)
		go func(leg probeLeg) {
			defer wg.Done()
			if err := leg.run(ctx, found); err != nil {
				logging.Warn("discovery probe failed",
					zap.String("probe", leg.name),
					zap.Error(err),
				)
				mu.Lock()
				legErrs = append(legErrs, fmt.Errorf("%s: %w", leg.name, err))
				mu.Unlock()
			}
		}(leg)
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	byAddr := make(map[string]*Descriptor)
	for desc := range found {
		prev, ok := byAddr[desc.IP]
		if !ok || desc.DiscoveredAt.After(prev.DiscoveredAt) {
			byAddr[desc.IP] = desc
		}
	}

	// Absence of devices is not an error; a scan only fails when no
	// probe could transmit at all.
	if len(byAddr) == 0 && len(legErrs) == len(legs) {
		return nil, &DiscoveryError{Op: "send probes", Err: legErrs[0]}
	}

	devices := make([]*Descriptor, 0, len(byAddr))
	for _, desc := range byAddr {
		devices = append(devices, desc)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].IP < devices[j].IP })

	return devices, nil
}

// Scan is a convenience function to scan with a custom timeout.
func Scan(timeout time.Duration) ([]*Descriptor, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan()
}
