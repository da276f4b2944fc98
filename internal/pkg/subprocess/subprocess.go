// Package subprocess runs the external tools handlers shell out to (video
// extractor, gallery extractor, HTML renderer, self-contained HTML
// builder), following §9's subprocess coordination design note: spawn,
// stream stdout/stderr concurrently, wait under a bounded timeout, kill
// on expiry. It also parses Netscape-format cookie files (§6).
package subprocess

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/forumarch/archiver/internal/pkg/archerr"
)

// ProgressLine is emitted for every stdout line matching the video
// extractor's `[download] P% of SIZE at SPEED ETA ETA` shape (§4.3).
type ProgressLine struct {
	Percent   float64
	Size      string
	Speed     string
	ETA       string
	RawLine   string
}

// Result carries everything the caller needs after a subprocess exits.
type Result struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
}

// Run spawns name with args, streams stdout lines to onStdout and stderr
// lines to onStderr as they arrive, and waits under timeout. On timeout
// the process is killed and the returned error is a retryable
// archerr.KindTimeout; a non-zero exit is archerr.KindExternalTool with
// the permanent-failure predicate applied to stderr at the call site
// (via archerr.IsPermanent).
func Run(ctx context.Context, timeout time.Duration, onStdout, onStderr func(line string), name string, args ...string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, archerr.Wrap(archerr.KindExternalTool, "stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, archerr.Wrap(archerr.KindExternalTool, "stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, archerr.Wrap(archerr.KindExternalTool, "start "+name, err)
	}

	result := &Result{}
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			result.Stdout = append(result.Stdout, line)
			if onStdout != nil {
				onStdout(line)
			}
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			result.Stderr = append(result.Stderr, line)
			if onStderr != nil {
				onStderr(line)
			}
		}
	}()

	<-done
	<-done

	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return result, archerr.New(archerr.KindTimeout, fmt.Sprintf("%s timed out after %s", name, timeout))
	}

	if waitErr != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
		return result, archerr.Wrap(archerr.KindExternalTool,
			fmt.Sprintf("%s exited %d: %s", name, result.ExitCode, strings.Join(result.Stderr, "\n")),
			waitErr,
		)
	}

	return result, nil
}

// ParseProgressLine parses the video extractor's
// `[download]  42.0% of ~10.00MiB at  1.23MiB/s ETA 00:05` shape.
func ParseProgressLine(line string) (ProgressLine, bool) {
	if !strings.HasPrefix(strings.TrimSpace(line), "[download]") {
		return ProgressLine{}, false
	}

	fields := strings.Fields(line)
	pl := ProgressLine{RawLine: line}
	for i, f := range fields {
		switch {
		case strings.HasSuffix(f, "%"):
			var pct float64
			if _, err := fmt.Sscanf(f, "%f%%", &pct); err == nil {
				pl.Percent = pct
			}
		case f == "of" && i+1 < len(fields):
			pl.Size = fields[i+1]
		case f == "at" && i+1 < len(fields):
			pl.Speed = fields[i+1]
		case f == "ETA" && i+1 < len(fields):
			pl.ETA = fields[i+1]
		}
	}
	return pl, true
}
