// Package cliemu presents the Anthropic Messages SSE protocol on top of a
// CLI that only speaks line-delimited JSON and has no tool-calling channel.
//
// A run is all-or-nothing: the CLI's output is buffered until the process
// exits, tool calls are recovered from the text, and only then is the SSE
// sequence synthesized. Tool-call markers can only be recognised once a
// block is complete, so nothing is streamed incrementally.
package cliemu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/missdeer/agentbridge/budget"
	"github.com/missdeer/agentbridge/internal/procattr"
	"github.com/missdeer/agentbridge/message"
)

// Result is the outcome of one successful run.
type Result struct {
	// Chunks are complete SSE events, in order.
	Chunks []string
	// Parsed is the assembled message, or nil when the CLI produced no content.
	Parsed   *message.ParsedResult
	Usage    Usage
	ExitCode int
	Stderr   string
}

// Emulator runs the CLI once per request. It holds no per-request state and
// is safe for concurrent use.
type Emulator struct {
	cfg    Config
	budget *budget.Translator
}

// New returns an Emulator. A nil translator uses the default price table.
func New(cfg Config, tr *budget.Translator) *Emulator {
	if tr == nil {
		tr = budget.New()
	}
	return &Emulator{cfg: cfg.withDefaults(), budget: tr}
}

// Run spawns the CLI, feeds it the transcript of req and waits for it to
// exit, the timeout to fire, or ctx to be cancelled. In the latter two cases
// the process group is killed and nothing is returned.
func (e *Emulator) Run(ctx context.Context, req Request) (*Result, error) {
	transcript, err := Transcript(req.Messages, e.cfg.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("build transcript: %w", err)
	}

	args := e.BuildArgs(req)
	cmd := exec.Command(e.cfg.Path, args...)
	procattr.Set(cmd)
	if e.cfg.WorkDir != "" {
		cmd.Dir = e.cfg.WorkDir
	}
	if len(e.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), e.cfg.Env...)
	}
	// Grandchildren holding the pipes open must not block Wait after a kill.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(transcript)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, &CLINotFoundError{Path: e.cfg.Path, Cause: err}
		}
		return nil, &ProcessError{Message: "failed to start cli", Cause: err}
	}
	model := e.model(req)
	log.Printf("[CLI] started pid=%d model=%q messages=%d tools=%d", cmd.Process.Pid, model, len(req.Messages), len(req.Tools))

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(e.cfg.Timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		_ = procattr.KillGroup(cmd.Process)
		<-done
		log.Printf("[CLI] pid=%d killed after %v", cmd.Process.Pid, e.cfg.Timeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		_ = procattr.KillGroup(cmd.Process)
		<-done
		log.Printf("[CLI] pid=%d killed: %v", cmd.Process.Pid, ctx.Err())
		return nil, ctx.Err()
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &ProcessError{Message: "failed waiting for cli", Cause: waitErr, Stderr: stderr.String()}
		}
		exitCode = exitErr.ExitCode()
	}

	out := parseOutput(stdout.Bytes())
	if out.skippedLines > 0 {
		log.Printf("[CLI] skipped %d unparseable output lines", out.skippedLines)
	}
	if exitCode != 0 {
		if !out.sawAssistant {
			return nil, &ProcessError{
				Message:  "cli exited without output",
				Cause:    waitErr,
				Stderr:   stderr.String(),
				ExitCode: exitCode,
			}
		}
		log.Printf("[CLI] exit code %d ignored, output is usable; stderr: %s", exitCode, strings.TrimSpace(stderr.String()))
	}

	stop := out.stopReason()
	res := &Result{
		Chunks:   Synthesize(message.NewMessageID(), model, out.blocks, stop, out.usage),
		Usage:    out.usage,
		ExitCode: exitCode,
		Stderr:   stderr.String(),
	}
	if len(out.blocks) > 0 {
		res.Parsed = &message.ParsedResult{
			Message:    message.Message{Role: message.RoleAssistant, Content: out.blocks},
			StopReason: stop,
		}
	}
	return res, nil
}

// Stream runs the CLI and writes the synthesized events to w, flushing after
// each one when w supports it. Nothing is written on error or when the CLI
// produced no content; the caller decides how to answer in that case.
func (e *Emulator) Stream(ctx context.Context, req Request, w io.Writer) (*Result, error) {
	res, err := e.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Parsed == nil {
		return res, nil
	}
	flusher, _ := w.(interface{ Flush() })
	for _, chunk := range res.Chunks {
		if _, err := io.WriteString(w, chunk); err != nil {
			return res, fmt.Errorf("write sse chunk: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return res, nil
}

func (e *Emulator) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return e.cfg.DefaultModel
}
