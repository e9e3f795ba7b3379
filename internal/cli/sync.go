package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/errs"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay pending changes against the server",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run one sync pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if a.queue.Len() == 0 {
			fmt.Println("Nothing to sync")
			return nil
		}

		// one synchronous probe instead of the background watcher
		a.watcher.Set(a.prober(ctx))
		if !a.watcher.Online() {
			return fmt.Errorf("%w: %d change(s) stay queued", errs.ErrOffline, a.queue.Len())
		}

		a.syncer.Run(ctx)
		st := a.syncer.Status()
		if st.LastErr != nil {
			return fmt.Errorf("sync halted with %d change(s) pending: %w", st.Pending, st.LastErr)
		}
		fmt.Printf("%s all changes synced\n", okMark())
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		pending := a.queue.Snapshot()
		if len(pending) == 0 {
			fmt.Printf("%s everything synced\n", okMark())
			return nil
		}
		fmt.Printf("%s %d change(s) waiting:\n", color.New(color.FgYellow).Sprint("!"), len(pending))
		for i, act := range pending {
			fmt.Printf("  %2d. %-25s %s\n", i+1, act.ActionKind(), act.ActionID())
		}
		return nil
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep syncing in the background until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.watcher.Start(ctx)
		a.syncer.Start(ctx)
		a.serveMetrics(ctx)
		a.log.Info("sync daemon running",
			zap.String("metrics", a.cfg.MetricsBind),
			zap.Int("pending", a.queue.Len()),
		)

		<-ctx.Done()
		a.log.Info("sync daemon stopping")
		return nil
	},
}

// SyncCmd returns the sync command tree.
func SyncCmd() *cobra.Command {
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncDaemonCmd)
	return syncCmd
}
