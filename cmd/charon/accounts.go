package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"heliox-hq/charon/pkg/cli"
	"heliox-hq/charon/pkg/config"
	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/pool/storage"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the credential pool",
	Long: `Inspect and modify the pooled upstream credentials.

Examples:
  # List all credentials
  charon accounts list

  # List only blocked credentials, as JSON
  charon accounts list --status blocked --format json

  # Add a credential
  charon accounts add --email user@example.com \
    --access-token eyJ... --refresh-token 1//...

  # Block a credential by email or token prefix
  charon accounts block user@example.com

  # Refresh quota snapshots
  charon accounts refresh-credits`,
}

var accountsListFlags struct {
	status string
	limit  int
	offset int
	format string
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pooled credentials",
	RunE:  accountsList,
}

var accountsAddFlags struct {
	email        string
	accessToken  string
	refreshToken string
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential to the pool",
	RunE:  accountsAdd,
}

var accountsBlockCmd = &cobra.Command{
	Use:   "block <email-or-token-prefix>",
	Short: "Mark a credential blocked",
	Args:  cobra.ExactArgs(1),
	RunE:  accountsBlock,
}

var accountsRefreshFlags struct {
	email string
}

var accountsRefreshCmd = &cobra.Command{
	Use:   "refresh-credits",
	Short: "Refresh quota snapshots from the identity provider",
	RunE:  accountsRefreshCredits,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsBlockCmd, accountsRefreshCmd)

	accountsListCmd.Flags().StringVar(&accountsListFlags.status, "status", "", "filter by status: active, blocked, expired")
	accountsListCmd.Flags().IntVar(&accountsListFlags.limit, "limit", 100, "maximum rows")
	accountsListCmd.Flags().IntVar(&accountsListFlags.offset, "offset", 0, "rows to skip")
	accountsListCmd.Flags().StringVar(&accountsListFlags.format, "format", "text", "output format: text, json, csv")

	accountsAddCmd.Flags().StringVar(&accountsAddFlags.email, "email", "", "credential email (required)")
	accountsAddCmd.Flags().StringVar(&accountsAddFlags.accessToken, "access-token", "", "upstream access token (required)")
	accountsAddCmd.Flags().StringVar(&accountsAddFlags.refreshToken, "refresh-token", "", "refresh token")
	_ = accountsAddCmd.MarkFlagRequired("email")
	_ = accountsAddCmd.MarkFlagRequired("access-token")

	accountsRefreshCmd.Flags().StringVar(&accountsRefreshFlags.email, "email", "", "refresh a single credential")
}

// openStore loads the configuration and opens the credential store.
func openStore() (*config.Config, *storage.SQLiteStore, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	store, err := storage.NewSQLiteStore(cfg.Pool.DatabasePath)
	if err != nil {
		return nil, nil, cli.NewCommandError("accounts", fmt.Errorf("open credential store: %w", err))
	}
	return cfg, store, nil
}

func accountsList(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(context.Background(),
		accountsListFlags.status, accountsListFlags.limit, accountsListFlags.offset)
	if err != nil {
		return cli.NewCommandError("accounts list", err)
	}

	switch accountsListFlags.format {
	case "json":
		type row struct {
			Email     string                 `json:"email"`
			Status    string                 `json:"status"`
			UseCount  int64                  `json:"use_count"`
			LastUsed  *time.Time             `json:"last_used,omitempty"`
			CreatedAt time.Time              `json:"created_at"`
			Quota     *storage.QuotaSnapshot `json:"quota,omitempty"`
		}
		rows := make([]row, 0, len(records))
		for _, rec := range records {
			rows = append(rows, row{
				Email:     rec.Email,
				Status:    rec.Status,
				UseCount:  rec.UseCount,
				LastUsed:  rec.LastUsed,
				CreatedAt: rec.CreatedAt,
				Quota:     rec.Quota,
			})
		}
		formatter, err := cli.NewFormatter(cli.FormatJSON)
		if err != nil {
			return cli.NewCommandError("accounts list", err)
		}
		return formatter.FormatTo(os.Stdout, rows)

	case "csv":
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.Email,
				rec.Status,
				fmt.Sprintf("%d", rec.UseCount),
				formatLastUsed(rec.LastUsed),
				formatQuota(rec.Quota),
			})
		}
		formatter := &cli.CSVFormatter{
			Headers: []string{"email", "status", "use_count", "last_used", "quota"},
		}
		return formatter.FormatTo(os.Stdout, rows)

	case "", "text":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tSTATUS\tUSES\tLAST USED\tQUOTA")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				rec.Email, rec.Status, rec.UseCount,
				formatLastUsed(rec.LastUsed), formatQuota(rec.Quota))
		}
		if err := w.Flush(); err != nil {
			return cli.NewCommandError("accounts list", err)
		}
		fmt.Printf("\n%d credentials\n", len(records))
		return nil

	default:
		return cli.NewConfigError("format",
			fmt.Sprintf("unknown output format %q (want text, json, or csv)", accountsListFlags.format))
	}
}

func formatLastUsed(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatQuota(q *storage.QuotaSnapshot) string {
	switch {
	case q == nil:
		return "-"
	case q.Unlimited:
		return "unlimited"
	default:
		return fmt.Sprintf("%d/%d", q.Used, q.Limit)
	}
}

func accountsAdd(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec := &storage.Record{
		Email:        accountsAddFlags.email,
		AccessToken:  accountsAddFlags.accessToken,
		RefreshToken: accountsAddFlags.refreshToken,
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		return cli.NewCommandError("accounts add", err)
	}

	fmt.Printf("✓ Credential added: %s\n", rec.Email)
	return nil
}

func accountsBlock(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ref := args[0]
	ctx := context.Background()

	var n int64
	if strings.Contains(ref, "@") {
		n, err = store.UpdateStatus(ctx, ref, storage.StatusBlocked)
	} else {
		n, err = store.UpdateStatusByTokenPrefix(ctx, ref, storage.StatusBlocked)
	}
	if err != nil {
		return cli.NewCommandError("accounts block", err)
	}
	if n == 0 {
		return cli.NewCommandError("accounts block", fmt.Errorf("no credential matches %q", ref))
	}

	fmt.Printf("✓ %d credential(s) blocked\n", n)
	return nil
}

func accountsRefreshCredits(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	idClient := identity.NewClient(identity.Config{
		RefreshURL: cfg.Identity.RefreshURL,
		QuotaURL:   cfg.Identity.QuotaURL,
		APIKey:     cfg.Identity.APIKey,
		Timeout:    cfg.Identity.RequestTimeout,
	})
	mgr := pool.NewManager(store, idClient, pool.Config{})

	ctx := context.Background()
	if accountsRefreshFlags.email != "" {
		snap, err := mgr.RefreshQuota(ctx, accountsRefreshFlags.email)
		if err != nil {
			return cli.NewCommandError("accounts refresh-credits", err)
		}
		if snap.Unlimited {
			fmt.Printf("✓ %s: unlimited\n", accountsRefreshFlags.email)
		} else {
			fmt.Printf("✓ %s: %d/%d used\n", accountsRefreshFlags.email, snap.Used, snap.Limit)
		}
		return nil
	}

	n, err := mgr.RefreshAllQuotas(ctx)
	if err != nil {
		return cli.NewCommandError("accounts refresh-credits", err)
	}
	fmt.Printf("✓ %d credential(s) refreshed\n", n)
	return nil
}
