// Package chat implements the interactive terminal controller: a
// read-eval-stream loop over the run pipeline.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/internal/orchestrator"
	"github.com/flexihub/assistant-gateway/internal/registry"
	"github.com/flexihub/assistant-gateway/pkg/logger"
)

// queueSize bounds the completion queue between the orchestrator and the
// loop's wait. Terminal events are rare, so a small buffer suffices.
const queueSize = 16

// defaultWait caps how long the loop waits for a run to reach a terminal
// event before giving the prompt back.
const defaultWait = 2 * time.Minute

// Controller drives one interactive conversation against a fixed assistant.
type Controller struct {
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	assistantID  string
	userID       string
	out          io.Writer
	logger       *logger.Logger
	waitTimeout  time.Duration
}

// New creates a Controller writing prompts and status lines to out. Streamed
// assistant text arrives through the CLI delivery channel, not through the
// controller.
func New(
	reg *registry.Registry,
	orch *orchestrator.Orchestrator,
	assistantID, userID string,
	out io.Writer,
	log *logger.Logger,
) *Controller {
	return &Controller{
		registry:     reg,
		orchestrator: orch,
		assistantID:  assistantID,
		userID:       userID,
		out:          out,
		logger:       log.Named("chat"),
		waitTimeout:  defaultWait,
	}
}

// ProcessMessage resolves the thread, adds the user message, and runs the
// assistant to completion. It blocks until a terminal event arrives or the
// wait times out.
func (c *Controller) ProcessMessage(ctx context.Context, text string) error {
	threadID, err := c.registry.GetOrCreateThread(ctx, c.assistantID, c.userID)
	if err != nil {
		return err
	}

	if _, err := c.registry.AddMessage(ctx, threadID, text, c.userID); err != nil {
		return err
	}

	queue := make(chan *model.Event, queueSize)
	rc := orchestrator.RunContext{
		AssistantID: c.assistantID,
		ThreadID:    threadID,
		UserID:      c.userID,
		Queue:       queue,
	}

	// Run failures surface through the queue as synthesized error events, so
	// the goroutine's return value needs no separate plumbing.
	go func() {
		if err := c.orchestrator.StartRun(ctx, rc); err != nil {
			c.logger.Error("run failed", zap.Error(err))
		}
	}()

	return c.awaitCompletion(ctx, queue)
}

// awaitCompletion drains the run queue until a completion-class event shows
// up. Error events are surfaced to the user but the wait continues until the
// synthesized done marker that always follows them.
func (c *Controller) awaitCompletion(ctx context.Context, queue <-chan *model.Event) error {
	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-queue:
			if ev.Type == model.EventError {
				fmt.Fprintf(c.out, "\n[error] %v\n", ev.Data["message"])
				continue
			}
			if model.IsTerminal(ev.Type) {
				fmt.Fprintln(c.out)
				return nil
			}
		case <-timer.C:
			return errors.New("timed out waiting for run completion")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunLoop reads user input line by line until EOF or an exit command,
// processing each message synchronously.
func (c *Controller) RunLoop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(c.out, "Connected. Type a message, or 'exit' to quit.")

	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(c.out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit", "/exit":
			fmt.Fprintln(c.out, "Bye.")
			return nil
		}

		if err := c.ProcessMessage(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.logger.Error("message failed", zap.Error(err))
			fmt.Fprintf(c.out, "[error] %v\n", err)
		}
	}
}
