package transmit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// ExitStatus is the outcome of an external tool run.
type ExitStatus struct {
	Code   int
	Stderr string
}

// Process is a handle to a detached external tool.
type Process interface {
	PID() int
	Alive() bool

	// Terminate sends SIGTERM. Kill sends SIGKILL.
	Terminate() error
	Kill() error

	// Done is closed after the process exits; Exit is valid afterwards.
	Done() <-chan struct{}
	Exit() *ExitStatus
}

// Runner abstracts external tool execution so the controller can be
// exercised without gps-sdr-sim or a HackRF attached.
type Runner interface {
	// Run executes a tool to completion, honouring ctx cancellation.
	// A non-zero exit is reported through ExitStatus, not an error.
	Run(ctx context.Context, name string, args ...string) (*ExitStatus, error)

	// Spawn starts a long-running tool and returns immediately.
	Spawn(name string, args ...string) (Process, error)
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*ExitStatus, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", name, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("error running %s: %w", name, err)
		}
		return &ExitStatus{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}, nil
	}

	return &ExitStatus{Code: 0, Stderr: strings.TrimSpace(stderr.String())}, nil
}

func (ExecRunner) Spawn(name string, args ...string) (Process, error) {
	var stderr bytes.Buffer

	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting %s: %w", name, err)
	}

	p := &execProcess{
		cmd:    cmd,
		stderr: &stderr,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)

		err := cmd.Wait()

		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}

		p.mu.Lock()
		p.exit = &ExitStatus{Code: code, Stderr: strings.TrimSpace(stderr.String())}
		p.mu.Unlock()
	}()

	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	done   chan struct{}

	mu   sync.Mutex
	exit *ExitStatus
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Terminate() error {
	if !p.Alive() {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	if !p.Alive() {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Exit() *ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}
