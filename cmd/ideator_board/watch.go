package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/board-of-ideators/internal/config"
	"github.com/jonathan/board-of-ideators/internal/poller"
)

var (
	watchServer   string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Watch a pipeline run until it finishes",
	Long:  `Poll a run's status until it reaches a terminal state, rendering a live progress line.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "API server base URL")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (overrides POLL_INTERVAL)")
	rootCmd.AddCommand(watchCmd)
}

var (
	watchLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchStageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	watchDoneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	watchFailedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func runWatch(cmd *cobra.Command, args []string) error {
	runID := args[0]

	interval := watchInterval
	if interval <= 0 {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		interval = cfg.PollInterval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu     sync.Mutex
		latest *poller.Snapshot
	)

	client := poller.NewClient(watchServer)
	p := poller.New(client, interval, func(s *poller.Snapshot) {
		mu.Lock()
		latest = s
		mu.Unlock()
	})

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	pollCtx, pollDone := context.WithCancel(ctx)
	g.Go(func() error {
		defer pollDone()
		return p.Run(pollCtx, runID)
	})

	// The elapsed-time line repaints on its own fast timer so it stays live
	// between poll round-trips.
	g.Go(func() error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return nil
			case <-ticker.C:
				mu.Lock()
				s := latest
				mu.Unlock()
				paintStatusLine(s, time.Since(start))
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		// Ctrl-C is a normal way to stop watching, not an error.
		err = nil
	}

	mu.Lock()
	final := latest
	mu.Unlock()
	printFinal(final, time.Since(start))
	return err
}

func paintStatusLine(s *poller.Snapshot, elapsed time.Duration) {
	line := watchLabelStyle.Render("watching") + fmt.Sprintf(" %s ", elapsed.Truncate(time.Second))
	if s != nil {
		line += watchStageStyle.Render(fmt.Sprintf("stage %d/5", s.CurrentStage)) + " " + s.Status
	} else {
		line += "connecting..."
	}
	fmt.Printf("\r\033[K%s", line)
}

func printFinal(s *poller.Snapshot, elapsed time.Duration) {
	fmt.Print("\r\033[K")
	if s == nil {
		fmt.Println("No status received.")
		return
	}
	switch s.Status {
	case "completed":
		fmt.Printf("%s run %s finished in %s\n", watchDoneStyle.Render("✓"), s.RunID, elapsed.Truncate(time.Second))
	case "failed", "cancelled":
		fmt.Printf("%s run %s %s after %s\n", watchFailedStyle.Render("✗"), s.RunID, s.Status, elapsed.Truncate(time.Second))
	default:
		fmt.Printf("Stopped watching run %s at stage %d (%s)\n", s.RunID, s.CurrentStage, s.Status)
	}
}
