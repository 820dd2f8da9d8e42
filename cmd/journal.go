package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"qms/token-queue/internal/config"
	"qms/token-queue/internal/store"
	"qms/token-queue/internal/store/postgres"
)

var errNoDatabase = errors.New("DB_DSN is not set")

func connectJournal(ctx context.Context) (*postgres.Store, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return pg, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the token event journal tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			pg, err := connectJournal(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Println("migrate: ok")
			return nil
		},
	}
}

// newOutboxCommand prints journal outbox events as JSON lines, oldest
// first. With --follow it keeps polling from the last event seen.
func newOutboxCommand() *cobra.Command {
	var (
		since    time.Duration
		limit    int
		follow   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Print queue events recorded in the journal outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pg, err := connectJournal(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()

			var offset store.OutboxOffset
			if since > 0 {
				offset.LastEventTime = time.Now().Add(-since).UTC()
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			for {
				batch, err := pg.ListOutboxEvents(ctx, offset, limit)
				if err != nil {
					return fmt.Errorf("list outbox: %w", err)
				}
				for _, event := range batch {
					if err := encoder.Encode(event); err != nil {
						return err
					}
					offset = event.Offset()
				}
				if !follow {
					return nil
				}
				if len(batch) == limit {
					continue
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this age, e.g. 15m (all when zero)")
	cmd.Flags().IntVar(&limit, "limit", 100, "events fetched per batch")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep polling for new events")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval with --follow")
	return cmd
}
