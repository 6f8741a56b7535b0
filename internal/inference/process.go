package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/pkg/logger"
)

// ProcessPredictor runs the classifier script once per request: the
// request is written to stdin, stdin is closed, and stdout is read until
// the process exits.
type ProcessPredictor struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	scale   Scale
}

func NewProcessPredictor(command string, args []string, dir string, timeout time.Duration, scale Scale) *ProcessPredictor {
	return &ProcessPredictor{
		command: command,
		args:    append([]string(nil), args...),
		dir:     dir,
		timeout: timeout,
		scale:   scale,
	}
}

func (p *ProcessPredictor) Predict(ctx context.Context, symptoms []string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(predictRequest{Symptoms: symptoms})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Dir = p.dir
	cmd.Stdin = bytes.NewReader(payload)
	// Once the context kills the process, stop waiting on pipes held open
	// by any grandchildren.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedBuffer{buf: &stdout, max: maxOutputBytes}
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: 64 << 10}

	runErr := cmd.Run()

	if stderr.Len() > 0 {
		logger.Warn("Classifier wrote to stderr",
			zap.String("command", p.command),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
		)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("classifier process did not finish within %s: %w", p.timeout, apperrors.ErrTimeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, fmt.Errorf("prediction cancelled: %w", ctx.Err())
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("failed to start classifier: %v: %w", runErr, apperrors.ErrUnreachable)
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("classifier exited with code %d and no output: %w", exitErr.ExitCode(), apperrors.ErrUnreachable)
		}
		// The script reports its own failures as {"error": ...} on stdout.
		logger.Warn("Classifier exited with error", zap.Int("exit_code", exitErr.ExitCode()))
	}

	return ParseOutput(bytes.TrimSpace(stdout.Bytes()), p.scale)
}

type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	// Report the full length so the child never blocks on a full pipe.
	return len(p), nil
}
