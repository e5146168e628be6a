package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ignite/notify-dispatch/internal/app"
	"github.com/ignite/notify-dispatch/internal/service/settings"
)

var (
	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Show the admin email settings",
		Args:  cobra.NoArgs,
		RunE:  cmdSettingsShow,
	}
	settingsSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Change admin email settings; only the flags given are changed",
		Args:  cobra.NoArgs,
		RunE:  cmdSettingsSet,
	}

	setCfg struct {
		SystemEnabled   bool
		MaintenanceMode bool
		MaxPerDay       int
		FromName        string
		FromEmail       string
		ReplyTo         string
		Editor          string
	}
)

func init() {
	f := settingsSetCmd.Flags()
	f.BoolVar(&setCfg.SystemEnabled, "system-enabled", true, "master switch for all email")
	f.BoolVar(&setCfg.MaintenanceMode, "maintenance", false, "block every send while true")
	f.IntVar(&setCfg.MaxPerDay, "max-per-day", 5, "per-recipient daily cap, 0 for no cap")
	f.StringVar(&setCfg.FromName, "from-name", "", "sender display name")
	f.StringVar(&setCfg.FromEmail, "from-email", "", "sender address")
	f.StringVar(&setCfg.ReplyTo, "reply-to", "", "reply-to address")
	f.StringVar(&setCfg.Editor, "editor", "notifyctl", "recorded as updated_by")
	settingsCmd.AddCommand(settingsSetCmd)
}

func cmdSettingsShow(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, a *app.App) error {
		s, err := a.Settings.Get(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s)
	})
}

func cmdSettingsSet(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, a *app.App) error {
		next, err := a.Settings.Get(ctx)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if f.Changed("system-enabled") {
			next.SystemEnabled = setCfg.SystemEnabled
		}
		if f.Changed("maintenance") {
			next.MaintenanceMode = setCfg.MaintenanceMode
		}
		if f.Changed("max-per-day") {
			next.MaxEmailsPerRecipientPerDay = setCfg.MaxPerDay
		}
		if f.Changed("from-name") {
			next.FromName = setCfg.FromName
		}
		if f.Changed("from-email") {
			next.FromEmail = setCfg.FromEmail
		}
		if f.Changed("reply-to") {
			next.ReplyTo = setCfg.ReplyTo
		}

		saved, err := a.Settings.Update(ctx, next, settings.Editor{ID: setCfg.Editor, Name: setCfg.Editor})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), saved)
	})
}
