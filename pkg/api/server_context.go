// Package api exposes the signing engine as an HTTP service: a signing
// endpoint, health and readiness probes for orchestration, Prometheus
// metrics and per-client rate limiting.
package api

import (
	"sync"
	"time"

	"github.com/SUNET/go-xmlsign/pkg/config"
	"github.com/SUNET/go-xmlsign/pkg/dsig"
	"github.com/SUNET/go-xmlsign/pkg/logging"
)

// ServerContext holds the shared state for the signing service: the
// server-side key material, the signing configuration and counters about
// completed runs. It provides thread-safe access for concurrent handlers.
//
// The ServerContext always has a configured Logger. If none is provided
// during initialization, a default logger is used.
type ServerContext struct {
	mu            sync.RWMutex
	Key           *dsig.KeyMaterial    // Server-side signing key (loaded at startup)
	Signing       config.SigningConfig // Template location and identifier settings
	Logger        logging.Logger       // Logger for API operations (never nil)
	RateLimiter   *RateLimiter         // Rate limiter for API endpoints (optional)
	Metrics       *Metrics             // Prometheus metrics (optional)
	DocumentsDone int                  // Number of documents signed since startup
	LastSigned    time.Time            // Timestamp of the last successful signing run
}

// NewServerContext creates a ServerContext with the given logger.
// A nil logger is replaced with the default logger.
func NewServerContext(logger logging.Logger) *ServerContext {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &ServerContext{Logger: logger}
}

// Lock locks the ServerContext for writing.
func (s *ServerContext) Lock() {
	s.mu.Lock()
}

// Unlock unlocks the ServerContext after writing.
func (s *ServerContext) Unlock() {
	s.mu.Unlock()
}

// RLock locks the ServerContext for reading.
func (s *ServerContext) RLock() {
	s.mu.RLock()
}

// RUnlock unlocks the ServerContext after reading.
func (s *ServerContext) RUnlock() {
	s.mu.RUnlock()
}

// RecordSigned updates the run counters after a successful signing run.
func (s *ServerContext) RecordSigned() {
	s.Lock()
	defer s.Unlock()
	s.DocumentsDone++
	s.LastSigned = time.Now()
}
