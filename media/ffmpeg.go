// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/reel"
)

// Progress carries one parsed ffmpeg progress block.
type Progress struct {
	Frame   int64
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures one ffmpeg invocation.
type RunOptions struct {
	// Args are the invocation arguments after the shared base flags.
	Args []string

	// ProgressHandler receives a parsed progress block roughly twice a
	// second while the command runs. May be nil.
	ProgressHandler func(*Progress)

	// LogHandler receives every ffmpeg output line. May be nil.
	LogHandler func(line string)
}

// Executor locates the ffmpeg tools once and runs them. Safe for
// concurrent use; each Run or Command spawns its own process.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// ExecOption configures an Executor.
type ExecOption func(*Executor)

// WithThreads caps ffmpeg's worker threads. Zero leaves the decision to
// ffmpeg.
func WithThreads(n int) ExecOption {
	return func(e *Executor) {
		if n > 0 {
			e.threads = n
		}
	}
}

// NewExecutor resolves ffmpeg and ffprobe on PATH.
func NewExecutor(opts ...ExecOption) (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v", ErrToolNotFound, err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %v", ErrToolNotFound, err)
	}

	e := &Executor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Command builds an ffmpeg command for callers that own the pipes, such
// as rawvideo decode and encode loops. No base flags are added beyond
// overwrite and log suppression.
func (e *Executor) Command(ctx context.Context, args ...string) *exec.Cmd {
	full := append([]string{"-y", "-v", "error"}, args...)
	return exec.CommandContext(ctx, e.ffmpegPath, full...)
}

// Run executes ffmpeg to completion, streaming progress and log lines
// to the handlers. Cancellation kills the process and returns the
// context error.
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("media: run: no arguments")
	}

	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "info"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", strconv.Itoa(e.threads))
	}
	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	reel.Logger().Debug("ffmpeg run", "args", strings.Join(opts.Args, " "))

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("media: stderr pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("media: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("media: start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Progress blocks arrive on stderr because of -progress pipe:2.
	go func() {
		defer wg.Done()
		streamOutput(stderr, opts.ProgressHandler, opts.LogHandler)
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("media: ffmpeg: %w", err)
	}
	return nil
}

// streamOutput parses progress key=value lines. A block ends at the
// progress= line; only then does the handler fire.
func streamOutput(r io.Reader, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progress := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		switch {
		case strings.HasPrefix(line, "frame="):
			fmt.Sscanf(line, "frame=%d", &progress.Frame)
		case strings.HasPrefix(line, "fps="):
			fmt.Sscanf(line, "fps=%f", &progress.FPS)
		case strings.HasPrefix(line, "bitrate="):
			progress.Bitrate = valueAfter(line)
		case strings.HasPrefix(line, "time="):
			progress.Time = valueAfter(line)
		case strings.HasPrefix(line, "speed="):
			progress.Speed = valueAfter(line)
		case strings.HasPrefix(line, "progress="):
			if progressHandler != nil && progress.Frame > 0 {
				progressHandler(progress)
			}
			progress = &Progress{}
		}
	}
}

func valueAfter(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// fmtSeconds renders a timestamp the way ffmpeg -ss expects it.
func fmtSeconds(t float64) string {
	return strconv.FormatFloat(t, 'f', 6, 64)
}
