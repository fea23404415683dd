package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// scanBufferSize allows single output lines up to 10MB, which stream-json
// engines routinely exceed with large tool results
const scanBufferSize = 10 * 1024 * 1024

// runProcess launches the engine binary and pumps its stdout lines through
// handleLine until the process exits. It returns immediately; the stream
// is finished from a goroutine. cleanup, if non-nil, runs once the process
// has exited, before the stream closes.
//
// A non-zero exit with a resume token set and no output produced is
// reported as ResumeFailedError, since the process died before the
// conversation could be re-established.
func runProcess(ctx context.Context, stream *Stream, engineName string, req Request, bin string, args []string, stdin io.Reader, handleLine func(*Stream, string), cleanup func()) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = req.WorkDir
	if stdin != nil {
		cmd.Stdin = stdin
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine %s: failed to open stdout pipe: %w", engineName, err)
	}

	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, limit: 8 * 1024}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("engine %s: failed to start %s: %w", engineName, bin, err)
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), scanBufferSize)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			handleLine(stream, line)
		}
		scanErr := scanner.Err()

		waitErr := cmd.Wait()
		if cleanup != nil {
			cleanup()
		}

		var finalErr error
		switch {
		case waitErr != nil:
			finalErr = fmt.Errorf("engine %s exited: %w%s", engineName, waitErr, stderrTail(stderr.String()))
		case scanErr != nil:
			finalErr = fmt.Errorf("engine %s: output read failed: %w", engineName, scanErr)
		}

		if finalErr != nil && req.ResumeToken != "" && !stream.emittedAny() {
			finalErr = ResumeFailedError{Engine: engineName, Token: req.ResumeToken, Cause: finalErr}
		}
		stream.finish(finalErr)
	}()

	return nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return " (stderr: " + s + ")"
}

// limitedWriter keeps only the first limit bytes, enough for diagnostics
type limitedWriter struct {
	w     io.Writer
	limit int
	n     int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if l.n < l.limit {
		keep := p
		if l.n+len(keep) > l.limit {
			keep = keep[:l.limit-l.n]
		}
		if _, err := l.w.Write(keep); err != nil {
			return 0, err
		}
		l.n += len(keep)
	}
	return total, nil
}
