package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/bitfantasy/oficina/internal/metrics"
	"github.com/bitfantasy/oficina/internal/shared/apiclient"
	"github.com/bitfantasy/oficina/internal/workshop/worksession"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSessionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Work session of a service order",
	}

	var metricsAddr string
	watch := &cobra.Command{
		Use:   "watch <appointment-id>",
		Short: "Follow an order's work clock and control it from stdin",
		Long: `Follow an order's work clock. The clock ticks locally every second and is
re-synchronized with the backend on every poll.

Commands read from stdin, one per line:
  start | pause | resume | finalize | refresh | quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd, args[0], metricsAddr)
		},
	}
	watch.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve session metrics on this address, e.g. :9101")
	cmd.AddCommand(watch)

	show := &cobra.Command{
		Use:   "show <appointment-id>",
		Short: "Print the current work session state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl := c.controller(args[0])
			if err := ctl.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSnapshot(ctl.Snapshot()))
			return nil
		},
	}
	cmd.AddCommand(show)

	for _, action := range []worksession.Action{
		worksession.ActionStart, worksession.ActionPause, worksession.ActionResume, worksession.ActionFinalize,
	} {
		cmd.AddCommand(c.oneShotCmd(action))
	}
	return cmd
}

// oneShotCmd 单次操作，经过与 watch 相同的前端校验
func (c *cli) oneShotCmd(action worksession.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <appointment-id>",
		Short: action.Label() + " the work session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctl := c.controller(args[0], worksession.WithNotifier(worksession.NotifierFunc(func(worksession.Notification) {})))
			if err := ctl.Refresh(ctx); err != nil {
				return err
			}
			if err := ctl.Do(ctx, action); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSnapshot(ctl.Snapshot()))
			return nil
		},
	}
}

func (c *cli) controller(id string, opts ...worksession.Option) *worksession.Controller {
	base := []worksession.Option{
		worksession.WithLogger(c.logger),
		worksession.WithPollInterval(c.cfg.Session.PollInterval),
		worksession.WithTickInterval(c.cfg.Session.TickInterval),
	}
	store := apiclient.NewSessionStore(c.client())
	return worksession.NewController(store, id, append(base, opts...)...)
}

func (c *cli) runWatch(cmd *cobra.Command, id, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	reg := metrics.NewRegistry()
	sessionMetrics := metrics.NewSession(reg)
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	var mu sync.Mutex
	last := ""
	render := func(s worksession.Snapshot) {
		line := renderSnapshot(s)
		mu.Lock()
		defer mu.Unlock()
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(out, line)
	}

	ctl := c.controller(id,
		worksession.WithMetrics(sessionMetrics),
		worksession.WithObserver(render),
		worksession.WithNotifier(worksession.NotifierFunc(func(n worksession.Notification) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(errOut, n.Message())
		})),
	)
	if err := ctl.Open(ctx); err != nil {
		return err
	}
	defer ctl.Close()

	lines := readLines(ctx, c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleCommand(ctx, ctl, line)
			if err != nil {
				mu.Lock()
				fmt.Fprintln(errOut, err)
				mu.Unlock()
			}
			if quit {
				return nil
			}
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// handleCommand 执行一条stdin命令。ActionError 已由 Notifier 报告，不再返回
func handleCommand(ctx context.Context, ctl *worksession.Controller, line string) (quit bool, err error) {
	switch strings.ToLower(line) {
	case "":
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	case "refresh":
		return false, ctl.Refresh(ctx)
	}

	err = ctl.Do(ctx, worksession.Action(strings.ToLower(line)))
	var actionErr *worksession.ActionError
	if errors.As(err, &actionErr) {
		return false, nil
	}
	return false, err
}

// renderSnapshot 单行展示：编号 计时 状态 可用操作
func renderSnapshot(s worksession.Snapshot) string {
	if !s.Loaded {
		return s.OrderID + "  loading..."
	}
	return fmt.Sprintf("%s  %s  %-12s  %-11s  %s", s.OrderID, s.Clock, s.Status, s.State, controlsHint(s))
}

func controlsHint(s worksession.Snapshot) string {
	if s.Submitting {
		return "[...]"
	}
	var enabled []string
	for _, a := range []worksession.Action{
		worksession.ActionStart, worksession.ActionPause, worksession.ActionResume, worksession.ActionFinalize,
	} {
		if s.Controls.Enabled(a) {
			enabled = append(enabled, string(a))
		}
	}
	return "[" + strings.Join(enabled, " ") + "]"
}
