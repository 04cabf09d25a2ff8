package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/schema"
	"github.com/dtce-ai/dtce-rag/session"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		watch     bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			current := atomic.NewPointer(a)
			defer func() { _ = current.Load().Close() }()

			store, err := session.New(cfg.Session)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			serveMetrics(ctx, cfg.Metrics.Addr)

			if watch {
				r := &reloader{load: root.load, build: newApp, current: current, retire: time.Minute}
				stopWatch, err := watchConfig(ctx, root.configPath, r.reload)
				if err != nil {
					logger.Warnf("config watch disabled: %v", err)
				} else {
					defer stopWatch()
				}
			}

			c := &chat{store: store, current: current, in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			return c.run(ctx, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	cmd.Flags().BoolVar(&watch, "watch", true, "rebuild the pipeline when the config file changes")
	return cmd
}

type chat struct {
	store   session.Store
	current *atomic.Pointer[app]
	in      io.Reader
	out     io.Writer
}

func (c *chat) run(ctx context.Context, id string) error {
	if id == "" {
		var err error
		if id, err = c.store.Create(ctx); err != nil {
			return err
		}
	}
	color.New(color.FgCyan).Fprintf(c.out, "DTCE assistant (session %s). Type 'exit' to quit, '/new' to start over.\n", id)

	user := color.New(color.FgGreen)
	scanner := bufio.NewScanner(c.in)
	for {
		user.Fprint(c.out, "\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/new":
			next, err := c.store.Create(ctx)
			if err != nil {
				color.New(color.FgRed).Fprintf(c.out, "could not start a new session: %v\n", err)
				continue
			}
			id = next
			fmt.Fprintf(c.out, "New session %s\n", id)
			continue
		}

		c.turn(ctx, id, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// turn answers one question and records it. Failed answers are not stored
// so they never become context for later questions.
func (c *chat) turn(ctx context.Context, id, question string) {
	history, err := c.store.History(ctx, id)
	if err != nil {
		logger.Warnf("chat: continuing without history: %v", err)
	}

	ans := c.current.Load().orch.Process(ctx, question, history)
	fmt.Fprintln(c.out)
	printAnswer(c.out, ans)

	if ans.Confidence == schema.ConfidenceError {
		return
	}
	err = c.store.Append(ctx, id,
		schema.Turn{Role: "user", Content: question},
		schema.Turn{Role: "assistant", Content: ans.Text},
	)
	if err != nil {
		logger.Warnf("chat: history not saved: %v", err)
	}
}
