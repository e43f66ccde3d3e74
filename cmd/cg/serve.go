package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/debug"
)

// serveCmd keeps the core running for long-lived agent sessions: it holds the
// store open, tails bus events to stdout as JSON lines, and periodically
// pings the backend. External transports attach out of process; this command
// itself is transport-free.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the core and tail events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		sub := a.bus.Subscribe() // all events
		defer a.bus.Unsubscribe(sub)

		debug.PrintNormal("cg serve: db=%s mailbox=%d wait-timeout=%s",
			dbPath, cfg.MailboxSize, a.waitTimeout())

		g, ctx := errgroup.WithContext(cmd.Context())

		g.Go(func() error {
			enc := json.NewEncoder(os.Stdout)
			for {
				select {
				case ev, ok := <-sub.C():
					if !ok {
						return nil
					}
					if err := enc.Encode(ev); err != nil {
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		})

		g.Go(func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
					err := a.store.Ping(pingCtx)
					cancel()
					if err != nil {
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		})

		err = g.Wait()
		if err == context.Canceled {
			err = nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
