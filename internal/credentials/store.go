package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName      = "vidaa-control"
	registryFile = "credentials.yaml"

	// RegistryVersion is the current registry file format version.
	RegistryVersion = 1
)

// Record is one stored pairing credential, keyed by device identifier in
// the registry.
type Record struct {
	// Token is the opaque access token issued by the device at pairing.
	Token string `yaml:"token"`

	// Variant is the dialect name the device was paired under.
	Variant string `yaml:"variant"`

	// Nickname is an optional user-friendly device name.
	Nickname string `yaml:"nickname,omitempty"`

	// LastIP is the last address the device was reached at.
	LastIP string `yaml:"last_ip,omitempty"`

	// PairedAt is when the PIN handshake succeeded.
	PairedAt time.Time `yaml:"paired_at"`

	// ExpiresAt marks token expiry when the device reported one; zero
	// means no known expiry.
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// Valid reports whether the record holds a usable token.
func (r *Record) Valid() bool {
	if r == nil || r.Token == "" {
		return false
	}
	if !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt) {
		return false
	}
	return true
}

// registry is the on-disk file shape.
type registry struct {
	Version int                `yaml:"version"`
	Devices map[string]*Record `yaml:"devices,omitempty"`
}

// Store reads and writes the credential registry file.
// Safe for concurrent use within one process.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore creates a store at the OS-appropriate config location.
func DefaultStore() (*Store, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStore(filepath.Join(dir, registryFile)), nil
}

// ConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/vidaa-control or $HOME/.config/vidaa-control
//   - macOS: $HOME/.config/vidaa-control (following XDG convention)
//   - Windows: %LOCALAPPDATA%\vidaa-control
func ConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// Get returns the stored record for a device identifier, or nil if the
// device has never been paired.
func (s *Store) Get(deviceID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return nil, err
	}
	rec := reg.Devices[deviceID]
	if rec == nil {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// Put writes or replaces the record for a device identifier.
func (s *Store) Put(deviceID string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return err
	}
	copied := *rec
	reg.Devices[deviceID] = &copied
	return s.save(reg)
}

// Invalidate removes the stored token for a device, keeping the metadata.
// Called when the device rejects the token so the next connect falls back
// to the full PIN flow.
func (s *Store) Invalidate(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return err
	}
	rec := reg.Devices[deviceID]
	if rec == nil {
		return nil
	}
	rec.Token = ""
	rec.ExpiresAt = time.Time{}
	return s.save(reg)
}

// Delete removes a device record entirely.
func (s *Store) Delete(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := reg.Devices[deviceID]; !ok {
		return nil
	}
	delete(reg.Devices, deviceID)
	return s.save(reg)
}

// List returns all stored records keyed by device identifier.
func (s *Store) List() (map[string]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Record, len(reg.Devices))
	for id, rec := range reg.Devices {
		copied := *rec
		out[id] = &copied
	}
	return out, nil
}

// load reads the registry file; a missing file yields an empty registry.
func (s *Store) load() (*registry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &registry{Version: RegistryVersion, Devices: make(map[string]*Record)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential registry: %w", err)
	}

	var reg registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse credential registry: %w", err)
	}
	if reg.Devices == nil {
		reg.Devices = make(map[string]*Record)
	}
	return &reg, nil
}

// save writes the registry with user-only permissions; tokens are secrets.
func (s *Store) save(reg *registry) error {
	reg.Version = RegistryVersion

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to serialize credential registry: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential registry: %w", err)
	}
	return nil
}
