// Package player drives the external media player process that consumes
// resolved stream addresses. It implements the playback sink: the transport
// (HTTP progressive, HLS or UDP/RTP) is entirely the player's concern.
package player

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/kvasnell/telezap/internal/logger"
)

const (
	terminationTimeout = 5 * time.Second
)

// Process management errors
var (
	ErrAlreadyPlaying = errors.New("player process already running")
)

// ExecSink launches one media player process per stream. At most one process
// is alive at a time; the session controller stops the previous stream before
// requesting a new one.
type ExecSink struct {
	binary string
	args   []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExecSink creates a sink spawning binary with the given fixed arguments;
// the resolved address is appended as the final argument.
func NewExecSink(binary string, args []string) *ExecSink {
	return &ExecSink{binary: binary, args: args}
}

// Play launches the player against the resolved address
func (s *ExecSink) Play(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		// The controller releases before acquiring; a live process here means
		// the discipline was violated upstream.
		return ErrAlreadyPlaying
	}

	args := make([]string, 0, len(s.args)+1)
	args = append(args, s.args...)
	args = append(args, address)

	cmd := exec.Command(s.binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}
	s.cmd = cmd

	logger.Log.Info().
		Int("pid", cmd.Process.Pid).
		Str("address", address).
		Msg("Player process launched")
	return nil
}

// Stop terminates the player gracefully (SIGTERM), then forcefully (SIGKILL)
// if it does not exit in time. Stopping a sink that is not playing is a no-op.
func (s *ExecSink) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	// Even when the process is already gone the wait below must run, so the
	// exited child is reaped rather than left as a zombie.
	pid := cmd.Process.Pid
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		logger.Log.Warn().
			Err(err).
			Int("pid", pid).
			Msg("Failed to send SIGTERM to player")
	}

	exitChan := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exitChan)
	}()

	select {
	case <-exitChan:
		logger.Log.Debug().Int("pid", pid).Msg("Player terminated gracefully")
	case <-time.After(terminationTimeout):
		logger.Log.Warn().Int("pid", pid).Msg("Player termination timeout, sending SIGKILL")
		_ = cmd.Process.Kill()
		<-exitChan
	}
}

// Release drops the process handle so a new stream may be acquired
func (s *ExecSink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = nil
}
