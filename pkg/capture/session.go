package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionConfig holds settings for a capture session.
type SessionConfig struct {
	// Port is the proxy listen port.
	Port int
	// CaptureDir is where HAR files are written. It is created if absent.
	CaptureDir string
	// MitmdumpPath overrides the mitmdump binary. Empty resolves from PATH.
	MitmdumpPath string
	// StartupWait is how long to wait before checking that the process came
	// up. Zero defaults to 2 seconds.
	StartupWait time.Duration
}

// Session manages one external mitmdump process writing a HAR capture file.
type Session struct {
	config      *SessionConfig
	captureFile string
	cmd         *exec.Cmd
	logger      zerolog.Logger
}

// NewSession prepares a capture session. Each session gets its own capture
// file so concurrent sessions in the same directory never collide.
func NewSession(cfg *SessionConfig, logger zerolog.Logger) (*Session, error) {
	if cfg.Port <= 0 {
		return nil, errors.New("a proxy port is required")
	}
	if cfg.CaptureDir == "" {
		return nil, errors.New("a capture directory is required")
	}
	if cfg.MitmdumpPath == "" {
		cfg.MitmdumpPath = "mitmdump"
	}
	if cfg.StartupWait <= 0 {
		cfg.StartupWait = 2 * time.Second
	}
	if err := os.MkdirAll(cfg.CaptureDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture dir: %w", err)
	}

	captureFile := filepath.Join(cfg.CaptureDir, fmt.Sprintf("capture-%s.har", uuid.NewString()))
	return &Session{
		config:      cfg,
		captureFile: captureFile,
		logger:      logger.With().Str("component", "Session").Str("capture_file", captureFile).Logger(),
	}, nil
}

// CaptureFile returns the path the session's HAR data is written to.
func (s *Session) CaptureFile() string {
	return s.captureFile
}

// Start launches the mitmdump process and verifies it survives startup.
func (s *Session) Start(ctx context.Context) error {
	if s.cmd != nil {
		return errors.New("session already started")
	}

	binary, err := exec.LookPath(s.config.MitmdumpPath)
	if err != nil {
		return fmt.Errorf("mitmdump binary not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary,
		"--listen-port", fmt.Sprintf("%d", s.config.Port),
		"--set", fmt.Sprintf("hardump=%s", s.captureFile),
		"--quiet",
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mitmdump: %w", err)
	}
	s.cmd = cmd

	select {
	case <-time.After(s.config.StartupWait):
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		s.cmd = nil
		return ctx.Err()
	}

	// A process that exited during the startup wait failed to bind or crashed.
	if s.cmd.ProcessState != nil || s.cmd.Process.Signal(syscall.Signal(0)) != nil {
		s.cmd = nil
		return fmt.Errorf("mitmdump exited during startup; is port %d free?", s.config.Port)
	}

	s.logger.Info().Int("port", s.config.Port).Msg("Capture proxy started.")
	return nil
}

// Stop terminates the proxy, first with SIGTERM so mitmdump flushes the HAR
// file, then with SIGKILL if it does not exit before ctx is done.
func (s *Session) Stop(ctx context.Context) error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	defer func() { s.cmd = nil }()

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal mitmdump: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
		s.logger.Info().Msg("Capture proxy stopped.")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Capture proxy did not exit in time; killing.")
		_ = s.cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

// WaitForRequest polls the capture file until an entry whose URL contains
// urlPath appears, or ctx is done. pollInterval zero defaults to 500ms.
func (s *Session) WaitForRequest(ctx context.Context, urlPath string, pollInterval time.Duration) (*HAREntry, error) {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(s.captureFile); err == nil {
			entry, err := FindRequestByPath(s.captureFile, urlPath)
			if err != nil {
				// The proxy may be mid-write; retry on the next tick.
				s.logger.Debug().Err(err).Msg("Capture file not yet readable.")
			} else if entry != nil {
				return entry, nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("no request matching %q captured: %w", urlPath, ctx.Err())
		}
	}
}
