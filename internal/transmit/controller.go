package transmit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/radiolab/gnss-simulator/internal/ephemeris"
	"github.com/radiolab/gnss-simulator/internal/geodesy"
	"github.com/radiolab/gnss-simulator/internal/location"
)

// Status is the lifecycle state of a transmission session.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusGenerating   Status = "generating"
	StatusTransmitting Status = "transmitting"
	StatusStopping     Status = "stopping"
	StatusStopped      Status = "stopped"
	StatusFailed       Status = "failed"
)

const (
	DefaultGenerationTimeout = 5 * time.Minute
	DefaultStopGrace         = 5 * time.Second

	MinPowerLevel = 0
	MaxPowerLevel = 1
)

// Params are the caller-supplied knobs for a session. Zero values for the
// RF fields are replaced with the controller defaults.
type Params struct {
	DurationSec  int   `json:"duration" yaml:"duration"`
	FrequencyHz  int64 `json:"frequency_hz" yaml:"frequencyHz"`
	SampleRateHz int   `json:"sample_rate_hz" yaml:"sampleRateHz"`
	TXGain       int   `json:"tx_gain" yaml:"txGain"`
	PowerLevel   int   `json:"power_level" yaml:"powerLevel"`
}

// Session is a point-in-time snapshot of the active (or last failed)
// transmission session. Status reports return it by value.
type Session struct {
	ID         string           `json:"session_id,omitempty"`
	Status     Status           `json:"status"`
	Location   geodesy.Geodetic `json:"location"`
	Params     Params           `json:"parameters"`
	StartedAt  time.Time        `json:"started_at"`
	PID        int              `json:"pid,omitempty"`
	ExitDetail string           `json:"exit_detail,omitempty"`
}

// Journal persists session lifecycle events. Implementations must tolerate
// being called from multiple goroutines.
type Journal interface {
	RecordStart(ctx context.Context, s Session) (int64, error)
	RecordEnd(ctx context.Context, id int64, status Status, detail string) error
}

// Config wires the controller to the external tools.
type Config struct {
	GeneratorPath     string        // gps-sdr-sim binary
	TransferPath      string        // hackrf_transfer binary
	SampleDir         string        // where synthesized I/Q files land
	GenerationTimeout time.Duration // bound on gps-sdr-sim runtime
	StopGrace         time.Duration // SIGTERM to SIGKILL window
	Defaults          Params        // fallback RF parameters
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.GeneratorPath == "" {
		out.GeneratorPath = "gps-sdr-sim"
	}
	if out.TransferPath == "" {
		out.TransferPath = "hackrf_transfer"
	}
	if out.SampleDir == "" {
		out.SampleDir = os.TempDir()
	}
	if out.GenerationTimeout <= 0 {
		out.GenerationTimeout = DefaultGenerationTimeout
	}
	if out.StopGrace <= 0 {
		out.StopGrace = DefaultStopGrace
	}
	if out.Defaults.FrequencyHz == 0 {
		out.Defaults.FrequencyHz = DefaultFrequencyHz
	}
	if out.Defaults.SampleRateHz == 0 {
		out.Defaults.SampleRateHz = DefaultSampleRateHz
	}
	return out
}

// WithLogger sets the logger for the controller.
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRunner replaces the process runner, primarily for tests.
func WithRunner(r Runner) func(c *Controller) {
	return func(c *Controller) {
		c.runner = r
	}
}

// WithJournal attaches a session journal.
func WithJournal(j Journal) func(c *Controller) {
	return func(c *Controller) {
		c.journal = j
	}
}

// Controller owns the single transmission session. At most one session is
// non-terminal at any time; Start enforces this under the controller lock.
type Controller struct {
	cfg      Config
	location *location.State
	store    *ephemeris.Store
	runner   Runner
	journal  Journal
	logger   *slog.Logger

	mu        sync.Mutex
	session   Session
	proc      Process
	timer     *time.Timer
	journalID int64
}

// New creates a Controller with a discard logger.
func New(cfg Config, loc *location.State, store *ephemeris.Store, options ...func(c *Controller)) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Controller{
		cfg:      cfg.withDefaults(),
		location: loc,
		store:    store,
		runner:   ExecRunner{},
		logger:   logger,
		session:  Session{Status: StatusIdle},
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Start synthesizes a baseband sample file for the current location and
// hands it to the transmission tool. It blocks through synthesis and
// returns once RF replay is running; replay itself is asynchronous.
func (c *Controller) Start(ctx context.Context, params Params) (string, error) {
	params = c.applyDefaults(params)
	if err := c.validateParams(params); err != nil {
		return "", err
	}

	loc, err := c.location.Get()
	if err != nil {
		return "", fmt.Errorf("%w: set a location before starting", ErrNoLocation)
	}

	set, err := c.store.Current()
	if err != nil {
		return "", fmt.Errorf("no ephemeris loaded: %w", err)
	}
	navFile := set.Source()

	id, err := newSessionID()
	if err != nil {
		return "", err
	}

	// Check-then-act under one critical section so two racing Start calls
	// cannot both pass the idle check.
	c.mu.Lock()
	if c.session.Status != StatusIdle {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: session %s is %s",
			ErrAlreadyTransmitting, c.session.ID, c.session.Status)
	}
	c.session = Session{
		ID:        id,
		Status:    StatusGenerating,
		Location:  loc,
		Params:    params,
		StartedAt: time.Now().UTC(),
	}
	c.mu.Unlock()

	c.recordStart(ctx)

	sampleFile := filepath.Join(c.cfg.SampleDir, fmt.Sprintf("gnsssim-%s.bin", id))

	if err := c.generate(ctx, navFile, loc, params, sampleFile); err != nil {
		c.removeSample(sampleFile)
		c.fail(ctx, id, err)
		return "", err
	}

	c.mu.Lock()
	cancelled := c.session.ID != id
	c.mu.Unlock()
	if cancelled {
		_ = os.Remove(sampleFile)
		return "", fmt.Errorf("%w: session %s cancelled", ErrNotTransmitting, id)
	}

	proc, err := c.transmit(params, sampleFile)
	if err != nil {
		c.removeSample(sampleFile)
		c.fail(ctx, id, err)
		return "", err
	}

	c.mu.Lock()
	if c.session.ID != id || c.session.Status != StatusGenerating {
		// Stopped underneath us while synthesis ran.
		c.mu.Unlock()
		_ = proc.Terminate()
		_ = os.Remove(sampleFile)
		return "", fmt.Errorf("%w: session %s cancelled", ErrNotTransmitting, id)
	}
	c.session.Status = StatusTransmitting
	c.session.PID = proc.PID()
	c.proc = proc
	c.timer = time.AfterFunc(time.Duration(params.DurationSec)*time.Second, func() {
		c.expire(id)
	})
	c.mu.Unlock()

	go c.watch(id, proc, sampleFile)

	c.logger.Info("transmission started",
		slog.String("session", id),
		slog.Int("pid", proc.PID()),
		slog.Int64("frequency", params.FrequencyHz),
		slog.Int("duration", params.DurationSec))

	return id, nil
}

// Stop terminates the active session. On a Failed session it clears the
// failure and returns nil. With no session at all it reports
// ErrNotTransmitting; callers that want idempotent semantics can treat
// that error as success.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()

	switch c.session.Status {
	case StatusIdle:
		c.mu.Unlock()
		return ErrNotTransmitting

	case StatusFailed:
		id := c.session.ID
		c.clearLocked()
		c.mu.Unlock()
		c.logger.Info("failed session cleared", slog.String("session", id))
		return nil

	case StatusStopping:
		// Another caller is already tearing the session down.
		c.mu.Unlock()
		return nil

	case StatusGenerating:
		// Synthesis is still running; mark the session dead so Start
		// aborts when it reacquires the lock.
		id := c.session.ID
		c.clearLocked()
		c.mu.Unlock()
		c.recordEnd(ctx, StatusStopped, "stopped during generation")
		c.logger.Info("session stopped during generation", slog.String("session", id))
		return nil
	}

	id := c.session.ID
	proc := c.proc
	c.session.Status = StatusStopping
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.shutdown(proc)

	c.mu.Lock()
	if c.session.ID == id {
		c.clearLocked()
	}
	c.mu.Unlock()

	c.recordEnd(ctx, StatusStopped, "stopped")
	c.logger.Info("transmission stopped", slog.String("session", id))
	return nil
}

// Status returns a snapshot of the current session. With no active
// session it reports Idle with the remaining fields zeroed.
func (c *Controller) Status() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Active reports whether a session is non-terminal.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status != StatusIdle && c.session.Status != StatusFailed
}

func (c *Controller) applyDefaults(p Params) Params {
	if p.FrequencyHz == 0 {
		p.FrequencyHz = c.cfg.Defaults.FrequencyHz
	}
	if p.SampleRateHz == 0 {
		p.SampleRateHz = c.cfg.Defaults.SampleRateHz
	}
	if p.TXGain == 0 && c.cfg.Defaults.TXGain != 0 {
		p.TXGain = c.cfg.Defaults.TXGain
	}
	if p.DurationSec == 0 && c.cfg.Defaults.DurationSec != 0 {
		p.DurationSec = c.cfg.Defaults.DurationSec
	}
	return p
}

func (c *Controller) validateParams(p Params) error {
	if p.DurationSec < MinDurationSec || p.DurationSec > MaxDurationSec {
		return fmt.Errorf("%w: duration must be between %d and %d seconds: %d given",
			ErrInvalidParameters, MinDurationSec, MaxDurationSec, p.DurationSec)
	}
	if p.TXGain < 0 || p.TXGain > MaxTXGain {
		return fmt.Errorf("%w: TX gain must be between 0 and %d dB: %d given",
			ErrInvalidParameters, MaxTXGain, p.TXGain)
	}
	if p.PowerLevel < MinPowerLevel || p.PowerLevel > MaxPowerLevel {
		return fmt.Errorf("%w: power level must be %d or %d: %d given",
			ErrInvalidParameters, MinPowerLevel, MaxPowerLevel, p.PowerLevel)
	}
	if p.FrequencyHz < MinFrequencyHz || p.FrequencyHz > MaxFrequencyHz {
		return fmt.Errorf("%w: frequency must be between %d and %d Hz: %d given",
			ErrInvalidParameters, MinFrequencyHz, MaxFrequencyHz, p.FrequencyHz)
	}
	if p.SampleRateHz < MinSampleRateHz || p.SampleRateHz > MaxSampleRateHz {
		return fmt.Errorf("%w: sample rate must be between %d and %d Hz: %d given",
			ErrInvalidParameters, MinSampleRateHz, MaxSampleRateHz, p.SampleRateHz)
	}
	return nil
}

// generate runs the synthesis tool to completion, bounded by the
// generation timeout. The controller lock is not held while it runs.
func (c *Controller) generate(ctx context.Context, navFile string, loc geodesy.Geodetic, params Params, sampleFile string) error {
	gen := GeneratorConfig{
		EphemerisFile: navFile,
		Location:      loc,
		DurationSec:   params.DurationSec,
		OutputFile:    sampleFile,
	}
	args, err := gen.Args()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	c.logger.Info("synthesizing baseband samples",
		slog.String("ephemeris", navFile),
		slog.Int("duration", params.DurationSec))

	started := time.Now()
	status, err := c.runner.Run(ctx, c.cfg.GeneratorPath, args...)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}
	if status.Code != 0 {
		return fmt.Errorf("synthesis failed: %w",
			newProcessError(c.cfg.GeneratorPath, status.Code, status.Stderr))
	}

	fi, err := os.Stat(sampleFile)
	if err != nil {
		return fmt.Errorf("synthesis produced no sample file: %w", err)
	}

	// 2 bytes per complex sample: int8 I and Q at the 8-bit depth the
	// generator is invoked with. A short file means synthesis was cut off.
	expected := int64(params.DurationSec) * int64(params.SampleRateHz) * 2
	if fi.Size() < expected-expected/10 {
		return fmt.Errorf("sample file %s holds %s, expected about %s",
			sampleFile, humanize.Bytes(uint64(fi.Size())), humanize.Bytes(uint64(expected)))
	}

	c.logger.Info("baseband samples ready",
		slog.String("file", sampleFile),
		slog.String("size", humanize.Bytes(uint64(fi.Size()))),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)))

	return nil
}

func (c *Controller) transmit(params Params, sampleFile string) (Process, error) {
	xfer := TransferConfig{
		SampleFile:   sampleFile,
		FrequencyHz:  params.FrequencyHz,
		SampleRateHz: params.SampleRateHz,
		TXGain:       params.TXGain,
		EnableAmp:    params.PowerLevel > 0,
		Repeat:       true,
	}
	args, err := xfer.Args()
	if err != nil {
		return nil, err
	}

	proc, err := c.runner.Spawn(c.cfg.TransferPath, args...)
	if err != nil {
		return nil, fmt.Errorf("error starting transmission: %w", err)
	}
	return proc, nil
}

// watch observes the replay process and flags an exit the controller did
// not request as a failure.
func (c *Controller) watch(id string, proc Process, sampleFile string) {
	<-proc.Done()
	defer c.removeSample(sampleFile)

	c.mu.Lock()
	if c.session.ID != id || c.session.Status != StatusTransmitting {
		// Stop owns the teardown.
		c.mu.Unlock()
		return
	}

	exit := proc.Exit()
	pe := newProcessError(c.cfg.TransferPath, exit.Code, exit.Stderr)
	c.session.Status = StatusFailed
	c.session.ExitDetail = pe.Error()
	c.proc = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.recordEnd(context.Background(), StatusFailed, pe.Error())
	c.logger.Error("transmission process exited unexpectedly",
		slog.String("session", id),
		slog.Int("code", exit.Code))
}

// removeSample deletes a baseband sample file, tolerating one that was
// never written.
func (c *Controller) removeSample(file string) {
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("error removing sample file",
			slog.String("file", file), slog.Any("error", err))
	}
}

// expire is the duration timer callback; it behaves like Stop for the
// session it was armed for, and is a no-op for any other.
func (c *Controller) expire(id string) {
	c.mu.Lock()
	if c.session.ID != id || c.session.Status != StatusTransmitting {
		c.mu.Unlock()
		return
	}
	proc := c.proc
	c.session.Status = StatusStopping
	c.timer = nil
	c.mu.Unlock()

	c.shutdown(proc)

	c.mu.Lock()
	if c.session.ID == id {
		c.clearLocked()
	}
	c.mu.Unlock()

	c.recordEnd(context.Background(), StatusStopped, "duration elapsed")
	c.logger.Info("transmission duration elapsed", slog.String("session", id))
}

// shutdown terminates the replay process, escalating to SIGKILL after the
// grace period.
func (c *Controller) shutdown(proc Process) {
	if proc == nil || !proc.Alive() {
		return
	}

	if err := proc.Terminate(); err != nil {
		c.logger.Warn("error signalling transmission process", slog.Any("error", err))
	}

	select {
	case <-proc.Done():
	case <-time.After(c.cfg.StopGrace):
		c.logger.Warn("transmission process did not exit, killing",
			slog.Int("pid", proc.PID()))
		if err := proc.Kill(); err != nil {
			c.logger.Warn("error killing transmission process", slog.Any("error", err))
		}
		<-proc.Done()
	}
}

// fail marks the session Failed, keeping it visible until Stop clears it.
func (c *Controller) fail(ctx context.Context, id string, err error) {
	c.mu.Lock()
	if c.session.ID != id {
		c.mu.Unlock()
		return
	}
	c.session.Status = StatusFailed
	c.session.ExitDetail = err.Error()
	c.proc = nil
	c.mu.Unlock()

	c.recordEnd(ctx, StatusFailed, err.Error())
	c.logger.Error("transmission session failed",
		slog.String("session", id), slog.Any("error", err))
}

func (c *Controller) clearLocked() {
	c.session = Session{Status: StatusIdle}
	c.proc = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) recordStart(ctx context.Context) {
	if c.journal == nil {
		return
	}

	c.mu.Lock()
	snap := c.session
	c.mu.Unlock()

	id, err := c.journal.RecordStart(ctx, snap)
	if err != nil {
		c.logger.Warn("error journaling session start", slog.Any("error", err))
		return
	}

	c.mu.Lock()
	c.journalID = id
	c.mu.Unlock()
}

func (c *Controller) recordEnd(ctx context.Context, status Status, detail string) {
	if c.journal == nil {
		return
	}

	c.mu.Lock()
	id := c.journalID
	c.mu.Unlock()

	if id == 0 {
		return
	}

	if err := c.journal.RecordEnd(ctx, id, status, detail); err != nil {
		c.logger.Warn("error journaling session end", slog.Any("error", err))
	}
}

func newSessionID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("error generating session id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
