package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// Analyzer runs the external analysis process and feeds its stdin through a
// Notifier. Readiness is detected from its stdout.
type Analyzer struct {
	command  []string
	notifier *Notifier
	log      *slog.Logger
}

func NewAnalyzer(command []string, notifier *Notifier, log *slog.Logger) *Analyzer {
	return &Analyzer{command: command, notifier: notifier, log: log.With("component", "analyzer")}
}

// Run starts the process and blocks until it exits or ctx is done.
func (a *Analyzer) Run(ctx context.Context) error {
	if len(a.command) == 0 {
		return errors.New("analyzer command is empty")
	}

	cmd := exec.CommandContext(ctx, a.command[0], a.command[1:]...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("analyzer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("analyzer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start analyzer: %w", err)
	}
	a.log.Info("analyzer started", "pid", cmd.Process.Pid, "command", a.command[0])

	a.notifier.Attach(stdin)
	defer a.notifier.Detach()

	go a.watchReady(stdout)

	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("analyzer exited: %w", err)
	}
	return nil
}

// watchReady marks the notifier ready on the first ready message and keeps
// draining the rest.
func (a *Analyzer) watchReady(r io.Reader) {
	fr := newFrameReader(r)
	for {
		body, err := fr.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.log.Debug("analyzer output", "error", err)
			}
			return
		}
		var msg struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			a.log.Debug("unparseable analyzer message", "error", err)
			continue
		}
		if msg.Method == MethodAnalyzerReady {
			a.notifier.MarkReady()
		}
	}
}
