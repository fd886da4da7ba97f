// Package detect probes a TV's management endpoint and classifies which
// firmware dialect it speaks.
//
// Detection runs once per connection attempt and is never cached across
// sessions, because firmware updates change the dialect independently of
// this client. The primary probe reads the platform version from the
// management port and maps it through the generation thresholds; when the
// version document is missing or unparsable, per-variant shape probes run
// in fixed modern, middle, legacy precedence and the first matching
// response shape wins.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tombabolewski/vidaa-control/internal/discovery"
	"github.com/tombabolewski/vidaa-control/internal/logging"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

const (
	// DefaultManagementPort is the HTTP port exposing the firmware's
	// version document.
	DefaultManagementPort = 38400

	// DefaultProbeTimeout bounds each individual probe attempt.
	DefaultProbeTimeout = 2 * time.Second
)

// ErrDetectionFailed means no variant's probe matched within the timeout
// budget across all variants.
var ErrDetectionFailed = errors.New("protocol detection failed")

// Detector classifies a device's firmware dialect.
type Detector struct {
	// ManagementPort is the HTTP port probed for the version document.
	ManagementPort int

	// ProbeTimeout bounds each individual probe attempt.
	ProbeTimeout time.Duration

	// Client is the HTTP client used for probes.
	Client *http.Client
}

// NewDetector creates a detector with default settings.
func NewDetector() *Detector {
	return &Detector{
		ManagementPort: DefaultManagementPort,
		ProbeTimeout:   DefaultProbeTimeout,
		Client:         &http.Client{},
	}
}

// versionDocument is the JSON state document served on the management port.
type versionDocument struct {
	PlatformVersion int    `json:"platform_version"`
	SoftwareVersion string `json:"software_version"`
	Model           string `json:"model"`
}

// probeSpec describes the capability probe for one dialect: the endpoint
// only that firmware generation serves, and the marker its response body
// must carry.
type probeSpec struct {
	path   string
	marker string
}

// shapeProbes are tried in protocol.DetectionOrder when the version
// document is unavailable.
var shapeProbes = map[protocol.Variant]probeSpec{
	protocol.VariantModern: {path: "/remoteapp/version", marker: `"platform_version"`},
	protocol.VariantMiddle: {path: "/remote/version", marker: "platform:"},
	protocol.VariantLegacy: {path: "/version", marker: ""},
}

// Detect classifies the dialect spoken by the device. Each probe attempt
// is bounded by ProbeTimeout; exhausting every probe yields
// ErrDetectionFailed.
func (d *Detector) Detect(ctx context.Context, desc *discovery.Descriptor) (protocol.Variant, error) {
	if v, ok := d.detectByVersion(ctx, desc); ok {
		return v, nil
	}

	for _, variant := range protocol.DetectionOrder {
		if d.matchesShape(ctx, desc, variant) {
			logging.Info("dialect detected by shape probe",
				zap.String("device", desc.IP),
				zap.String("variant", variant.String()),
			)
			return variant, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	return protocol.VariantUnknown, fmt.Errorf("%w: no probe matched for %s", ErrDetectionFailed, desc.IP)
}

// detectByVersion reads the platform version document and maps it through
// the generation thresholds.
func (d *Detector) detectByVersion(ctx context.Context, desc *discovery.Descriptor) (protocol.Variant, bool) {
	body, err := d.probe(ctx, desc, "/deviceinfo")
	if err != nil {
		logging.Debug("version document probe failed",
			zap.String("device", desc.IP),
			zap.Error(err),
		)
		return protocol.VariantUnknown, false
	}

	var doc versionDocument
	if err := json.Unmarshal(body, &doc); err != nil || doc.PlatformVersion == 0 {
		return protocol.VariantUnknown, false
	}

	variant := protocol.ClassifyPlatformVersion(doc.PlatformVersion)
	logging.Info("dialect detected by platform version",
		zap.String("device", desc.IP),
		zap.Int("platform_version", doc.PlatformVersion),
		zap.String("variant", variant.String()),
	)
	return variant, true
}

// matchesShape reports whether the variant's capability endpoint answers
// with the expected response shape.
func (d *Detector) matchesShape(ctx context.Context, desc *discovery.Descriptor, v protocol.Variant) bool {
	spec := shapeProbes[v]
	body, err := d.probe(ctx, desc, spec.path)
	if err != nil {
		return false
	}
	if spec.marker == "" {
		return len(bytes.TrimSpace(body)) > 0
	}
	return bytes.Contains(body, []byte(spec.marker))
}

// probe issues one bounded GET against the management port.
func (d *Detector) probe(ctx context.Context, desc *discovery.Descriptor, path string) ([]byte, error) {
	port := d.ManagementPort
	if port == 0 {
		port = DefaultManagementPort
	}

	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout())
	defer cancel()

	url := fmt.Sprintf("http://%s:%d%s", desc.IP, port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read probe response: %w", err)
	}
	return body, nil
}

func (d *Detector) probeTimeout() time.Duration {
	if d.ProbeTimeout > 0 {
		return d.ProbeTimeout
	}
	return DefaultProbeTimeout
}

func (d *Detector) httpClient() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}
