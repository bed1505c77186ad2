package control

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a started child process. Exit is observed by a single
// background Wait so every method is safe to call concurrently.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

// startProcess starts cmd and begins waiting for it
func startProcess(cmd *exec.Cmd) (*Process, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the process ID
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed when the process has exited
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the process has not exited yet
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the error from Wait once the process has exited
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Kill forcefully terminates the process and waits for it to exit
func (p *Process) Kill() error {
	if !p.Alive() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && p.Alive() {
		return fmt.Errorf("failed to kill process %d: %w", p.Pid(), err)
	}
	<-p.done
	return nil
}

// Terminate sends SIGTERM and kills the process if it has not exited
// within grace
func (p *Process) Terminate(grace time.Duration) error {
	if !p.Alive() {
		return nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return p.Kill()
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
		return p.Kill()
	}
}
