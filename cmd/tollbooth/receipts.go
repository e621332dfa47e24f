package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"conductor-hq/tollbooth/pkg/config"
	"conductor-hq/tollbooth/pkg/receipt"
	"conductor-hq/tollbooth/pkg/signature"
	"conductor-hq/tollbooth/pkg/storage"
)

var receiptsFlags struct {
	subject  string
	decision string
	action   string
	since    string
	until    string
	limit    int
	verify   bool
}

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "Query the receipt ledger",
	Long: `Query receipts directly from the configured storage backend.

Subcommands:
  query - List receipts matching filters
  get   - Fetch one receipt by id`,
}

var receiptsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List receipts matching filters",
	Long: `List receipts from the ledger, newest first.

Examples:
  # Ten most recent receipts
  tollbooth receipts query --limit 10

  # Denied writes for one subject in a window
  tollbooth receipts query --subject agent-7 --decision DENY \
    --since 2026-08-01T00:00:00Z --until 2026-08-30T00:00:00Z`,
	RunE: runReceiptsQuery,
}

var receiptsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one receipt by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runReceiptsGet,
}

func init() {
	rootCmd.AddCommand(receiptsCmd)
	receiptsCmd.AddCommand(receiptsQueryCmd)
	receiptsCmd.AddCommand(receiptsGetCmd)

	receiptsQueryCmd.Flags().StringVar(&receiptsFlags.subject, "subject", "", "filter by subject")
	receiptsQueryCmd.Flags().StringVar(&receiptsFlags.decision, "decision", "", "filter by decision (ALLOW, DENY, REQUIRE_APPROVAL, POLICY_CHANGE)")
	receiptsQueryCmd.Flags().StringVar(&receiptsFlags.action, "action", "", "filter by action")
	receiptsQueryCmd.Flags().StringVar(&receiptsFlags.since, "since", "", "inclusive window start (RFC 3339)")
	receiptsQueryCmd.Flags().StringVar(&receiptsFlags.until, "until", "", "inclusive window end (RFC 3339)")
	receiptsQueryCmd.Flags().IntVar(&receiptsFlags.limit, "limit", 20, "maximum receipts to return")

	receiptsGetCmd.Flags().BoolVar(&receiptsFlags.verify, "verify", false, "also verify the receipt signature")
}

// openLedger builds a read-only ledger over the configured backend.
func openLedger() (*receipt.Ledger, func() error, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Backend != "sqlite" {
		return nil, nil, fmt.Errorf("receipts commands require the sqlite backend, configured backend is %q", cfg.Storage.Backend)
	}

	store, err := storage.NewSQLite(&storage.SQLiteConfig{
		Path:         cfg.Storage.SQLite.Path,
		MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
		MaxIdleConns: cfg.Storage.SQLite.MaxIdleConns,
		WALMode:      cfg.Storage.SQLite.WALMode,
		BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	signer, err := signature.New([]byte(cfg.Signing.Secret))
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return receipt.NewLedger(signer, store, nil), store.Close, nil
}

func runReceiptsQuery(cmd *cobra.Command, args []string) error {
	ledger, closeStore, err := openLedger()
	if err != nil {
		return err
	}
	defer closeStore()

	q := &receipt.Query{
		Subject: receiptsFlags.subject,
		Action:  receiptsFlags.action,
		Limit:   receiptsFlags.limit,
	}
	if receiptsFlags.decision != "" {
		outcome := receipt.Outcome(receiptsFlags.decision)
		if !outcome.Valid() {
			return fmt.Errorf("unknown decision %q", receiptsFlags.decision)
		}
		q.Decision = outcome
	}
	if receiptsFlags.since != "" {
		ts, err := time.Parse(time.RFC3339, receiptsFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		q.Since = &ts
	}
	if receiptsFlags.until != "" {
		ts, err := time.Parse(time.RFC3339, receiptsFlags.until)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		q.Until = &ts
	}

	ctx := context.Background()
	receipts, err := ledger.Query(ctx, q)
	if err != nil {
		return err
	}
	total, err := ledger.Count(ctx, q)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]any{
		"receipts": receipts,
		"total":    total,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runReceiptsGet(cmd *cobra.Command, args []string) error {
	ledger, closeStore, err := openLedger()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	rcpt, err := ledger.Get(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rcpt, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if receiptsFlags.verify {
		valid, err := ledger.Verify(ctx, rcpt.ID)
		if err != nil {
			return err
		}
		if valid {
			fmt.Println("✓ Signature valid")
		} else {
			fmt.Println("✗ Signature INVALID")
		}
	}
	return nil
}
