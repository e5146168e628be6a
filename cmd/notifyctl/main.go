// Command notifyctl is the operator CLI: schema migrations, one-off campaign
// sends, stats and admin settings, all against the same store the server
// uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"github.com/ignite/notify-dispatch/internal/app"
	"github.com/ignite/notify-dispatch/internal/config"
	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/repository/postgres"
)

var (
	rootCmd = &cobra.Command{
		Use:           "notifyctl",
		Short:         "Operate the notification dispatch engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  cmdMigrate,
	}
	sendCmd = &cobra.Command{
		Use:   "send <campaign-id>",
		Short: "Dispatch a campaign in this process and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdSend,
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print global email totals",
		Args:  cobra.NoArgs,
		RunE:  cmdStats,
	}

	configPath string
	listOnly   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file (defaults plus environment when empty)")
	migrateCmd.Flags().BoolVar(&listOnly, "list", false, "list applied migrations instead of applying")

	rootCmd.AddCommand(migrateCmd, sendCmd, statsCmd, settingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadFromEnv(configPath)
}

// withEngine assembles the engine for one command and closes it after.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func cmdMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errs.New("DATABASE_URL is required")
	}
	ctx := cmd.Context()
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	out := cmd.OutOrStdout()
	if listOnly {
		rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
		if err != nil {
			return errs.Wrap(err)
		}
		defer func() { _ = rows.Close() }()
		n := 0
		for rows.Next() {
			var version, appliedAt string
			if err := rows.Scan(&version, &appliedAt); err != nil {
				return errs.Wrap(err)
			}
			fmt.Fprintf(out, "  %s  %s\n", version, appliedAt)
			n++
		}
		fmt.Fprintf(out, "Total: %d migrations\n", n)
		return errs.Wrap(rows.Err())
	}

	n, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Applied %d migrations\n", n)
	return nil
}

func cmdSend(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, a *app.App) error {
		res, err := a.Pipeline.ResolveAndDispatch(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "campaign %s sent: %d success, %d failed, %d skipped\n",
			args[0], res.Success, res.Failed, res.Skipped)
		return nil
	})
}

func cmdStats(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, a *app.App) error {
		counts, err := a.Logs.Counts(ctx)
		if err != nil {
			return err
		}
		total, active, err := a.Campaigns.Counts(ctx)
		if err != nil {
			return err
		}
		users, err := a.Preferences.Count(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), domain.Stats{
			TotalEmailsSent:     counts.Sent(),
			TotalCampaigns:      total,
			ActiveCampaigns:     active,
			TotalUsersWithPrefs: users,
			TemplatesCount:      a.Templates.Count(),
			SuccessRate:         counts.SuccessRate(),
			ByStatus:            counts,
		})
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
