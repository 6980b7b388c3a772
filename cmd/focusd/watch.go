package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/focusd/internal/config"
	"github.com/fyrsmithlabs/focusd/internal/events"
	"github.com/fyrsmithlabs/focusd/internal/monitor"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var (
		tui      bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow batch lifecycle events from NATS",
		Long: `Subscribe to the batch events published by a running focusd. By default
one line is printed per event until interrupted; --tui opens a live dashboard
with per-batch progress and throughput. Uses the events section of the config.

Examples:
  FOCUSD_EVENTS_URL=nats://localhost:4222 focusd watch
  focusd watch --tui --interval 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if tui {
				return watchDashboard(ctx, cfg.Events, interval)
			}
			return watchEvents(ctx, cfg.Events, cmd)
		},
	}
	cmd.Flags().BoolVar(&tui, "tui", false, "show a live dashboard")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "dashboard throughput sample interval")
	return cmd
}

// subscribeEvents forwards events into a buffered channel, dropping them when
// the reader falls behind. The channel is closed by the returned stop func.
func subscribeEvents(cfg config.EventsConfig, name string) (<-chan events.Event, func(), error) {
	nc, err := events.Connect(cfg, name)
	if err != nil {
		return nil, nil, err
	}

	var (
		mu     sync.Mutex
		closed bool
	)
	ch := make(chan events.Event, 256)
	sub, err := events.Subscribe(nc, cfg.SubjectPrefix, func(_ string, ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	stop := func() {
		_ = sub.Unsubscribe()
		nc.Close()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}
	return ch, stop, nil
}

func watchEvents(ctx context.Context, cfg config.EventsConfig, cmd *cobra.Command) error {
	ch, stop, err := subscribeEvents(cfg, "focusd-watch")
	if err != nil {
		return err
	}
	defer stop()

	fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf("watching %s.> on %s", cfg.SubjectPrefix, cfg.URL)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			fmt.Fprintln(cmd.OutOrStdout(), formatEvent(ev))
		}
	}
}

func watchDashboard(ctx context.Context, cfg config.EventsConfig, interval time.Duration) error {
	ch, stop, err := subscribeEvents(cfg, "focusd-monitor")
	if err != nil {
		return err
	}
	defer stop()

	p := tea.NewProgram(monitor.NewModel(ch, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
