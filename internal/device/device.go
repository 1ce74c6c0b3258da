// Package device reports whether the RF hardware and the signal synthesis
// tool are usable on this host.
package device

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultCacheTTL     = 10 * time.Second

	// hackrf_info prints this line for every board it enumerates.
	foundMarker = "Found HackRF"
)

// Info is the outcome of a hardware probe.
type Info struct {
	Available bool      `json:"available"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// WithLogger sets the logger for the probe.
func WithLogger(logger *slog.Logger) func(p *Probe) {
	return func(p *Probe) {
		p.logger = logger
	}
}

// WithCommand replaces the probe command, primarily for tests.
func WithCommand(run func(ctx context.Context) (string, error)) func(p *Probe) {
	return func(p *Probe) {
		p.run = run
	}
}

// WithCacheTTL adjusts how long a probe result is reused.
func WithCacheTTL(ttl time.Duration) func(p *Probe) {
	return func(p *Probe) {
		p.cacheTTL = ttl
	}
}

// Probe checks for an attached HackRF by running `hackrf_info`. Results
// are cached briefly so status polling does not hammer the USB bus.
type Probe struct {
	infoPath string
	timeout  time.Duration
	cacheTTL time.Duration
	run      func(ctx context.Context) (string, error)
	logger   *slog.Logger

	mu        sync.Mutex
	cached    Info
	hasCached bool
}

// NewProbe creates a Probe with a discard logger. An empty infoPath falls
// back to `hackrf_info` on PATH.
func NewProbe(infoPath string, options ...func(p *Probe)) *Probe {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	if infoPath == "" {
		infoPath = "hackrf_info"
	}

	p := Probe{
		infoPath: infoPath,
		timeout:  DefaultProbeTimeout,
		cacheTTL: DefaultCacheTTL,
		logger:   logger,
	}
	p.run = p.execInfo

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Check probes the hardware, reusing a recent result when available.
func (p *Probe) Check(ctx context.Context) Info {
	p.mu.Lock()
	if p.hasCached && time.Since(p.cached.CheckedAt) < p.cacheTTL {
		info := p.cached
		p.mu.Unlock()
		return info
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	info := Info{CheckedAt: time.Now().UTC()}

	out, err := p.run(ctx)
	switch {
	case err != nil:
		info.Detail = err.Error()
		p.logger.Warn("hardware probe failed", slog.Any("error", err))
	case strings.Contains(out, foundMarker):
		info.Available = true
		info.Detail = boardDetail(out)
	default:
		info.Detail = "no HackRF boards found"
	}

	p.mu.Lock()
	p.cached = info
	p.hasCached = true
	p.mu.Unlock()

	return info
}

func (p *Probe) execInfo(ctx context.Context) (string, error) {
	var stdout bytes.Buffer

	cmd := exec.CommandContext(ctx, p.infoPath)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// boardDetail extracts the board identification line, if present.
func boardDetail(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Board ID Number") || strings.HasPrefix(line, foundMarker) {
			return line
		}
	}
	return foundMarker
}
