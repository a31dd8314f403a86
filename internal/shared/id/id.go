// Package id generates identifiers for sandbox instances and attached hosts.
//
// Sandbox IDs are prefixed ULIDs so they sort by creation time and stay
// readable in logs (sbx_01HV...). Host connections use random UUIDs since
// they only need to be unique for the lifetime of a websocket.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SandboxID identifies a sandbox instance and its runner bridge
type SandboxID string

// HostID identifies a host connection attached to a sandbox bridge
type HostID string

const (
	SandboxPrefix = "sbx"
	HostPrefix    = "host"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic IDs.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSandboxID generates a new sandbox ID
func NewSandboxID() SandboxID {
	return SandboxID(Default().GenerateWithPrefix(SandboxPrefix))
}

// NewHostID generates a new host connection ID
func NewHostID() HostID {
	return HostID(HostPrefix + "_" + uuid.New().String())
}

// NewRequestID generates an HTTP request ID
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

func (id SandboxID) String() string { return string(id) }
func (id HostID) String() string    { return string(id) }

// IsSandboxID reports whether s looks like a sandbox ID produced by NewSandboxID
func IsSandboxID(s string) bool {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix != SandboxPrefix {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}

// Timestamp extracts the creation time from a sandbox ID
func Timestamp(id SandboxID) (time.Time, error) {
	_, rest, ok := strings.Cut(string(id), "_")
	if !ok {
		return time.Time{}, fmt.Errorf("malformed sandbox id: %s", id)
	}
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
