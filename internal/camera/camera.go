// Package camera abstracts the "take one frame" operation. The driver call
// itself is an external collaborator: the default implementation shells out
// to a grabber command that writes a JPEG to stdout (fswebcam, ffmpeg,
// imagesnap), and tests substitute the interface.
package camera

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Camera produces one still frame per call.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ExecCamera runs a configured grabber command and reads the frame from its
// stdout.
type ExecCamera struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecCamera builds the exec-backed camera; command must be non-empty.
func NewExecCamera(command []string, timeout time.Duration, logger *zap.Logger) (*ExecCamera, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("camera command not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecCamera{command: command, timeout: timeout, logger: logger}, nil
}

// Capture grabs one frame within the configured timeout.
func (c *ExecCamera) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.command[0], c.command[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("camera grabber: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("camera grabber produced no frame")
	}
	c.logger.Debug("frame captured", zap.Int("bytes", len(out)))
	return out, nil
}
