package sync

import (
	"fmt"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/settings"
)

var SettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Настройки синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		s, err := env.Agent.Settings(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения настроек: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(s)
		}
		printSettings(s)
		return nil
	},
}

func printSettings(s *settings.Settings) {
	w := types.NewTable()
	fmt.Fprintf(w, "auto-sync\t%v\t\n", s.AutoSync)
	fmt.Fprintf(w, "interval\t%d мин\t\n", s.SyncInterval)
	fmt.Fprintf(w, "wifi-only\t%v\t\n", s.SyncOnWiFiOnly)
	fmt.Fprintf(w, "auto-backup\t%v\t\n", s.AutoBackup)
	fmt.Fprintf(w, "backup-frequency\t%s\t\n", s.BackupFrequency)
	fmt.Fprintf(w, "max-backups\t%d\t\n", s.MaxBackups)
	fmt.Fprintf(w, "conflict-resolution\t%s\t\n", s.ConflictResolution)
	fmt.Fprintf(w, "notifications\t%v\t\n", s.SyncNotifications)
	w.Flush()
}

var setCmd = &cobra.Command{
	Use:     "set",
	Short:   "Изменить настройки",
	Example: `  recipesync sync settings set --interval 30 --conflict-resolution newest`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		cur, err := env.Agent.Settings(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения настроек: %w", err)
		}

		// меняем только явно переданные флаги
		f := cmd.Flags()
		next := *cur
		if f.Changed("auto-sync") {
			next.AutoSync, _ = f.GetBool("auto-sync")
		}
		if f.Changed("interval") {
			next.SyncInterval, _ = f.GetInt("interval")
		}
		if f.Changed("wifi-only") {
			next.SyncOnWiFiOnly, _ = f.GetBool("wifi-only")
		}
		if f.Changed("auto-backup") {
			next.AutoBackup, _ = f.GetBool("auto-backup")
		}
		if f.Changed("backup-frequency") {
			v, _ := f.GetString("backup-frequency")
			next.BackupFrequency = settings.Frequency(v)
		}
		if f.Changed("max-backups") {
			next.MaxBackups, _ = f.GetInt("max-backups")
		}
		if f.Changed("conflict-resolution") {
			v, _ := f.GetString("conflict-resolution")
			next.ConflictResolution = conflict.Policy(v)
		}
		if f.Changed("notifications") {
			next.SyncNotifications, _ = f.GetBool("notifications")
		}

		updated, err := env.Agent.UpdateSettings(cmd.Context(), next)
		if err != nil {
			return fmt.Errorf("ошибка сохранения настроек: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(updated)
		}
		printSettings(updated)
		return nil
	},
}

func init() {
	f := setCmd.Flags()
	f.Bool("auto-sync", true, "синхронизировать по расписанию")
	f.Int("interval", 15, "интервал синхронизации в минутах (1-1440)")
	f.Bool("wifi-only", false, "синхронизировать только через безлимитную сеть")
	f.Bool("auto-backup", true, "автоматические резервные копии")
	f.String("backup-frequency", "weekly", "daily, weekly или monthly")
	f.Int("max-backups", 5, "сколько копий хранить (1-100)")
	f.String("conflict-resolution", "ask", "local, remote, newest или ask")
	f.Bool("notifications", true, "уведомления о синхронизации")

	SettingsCmd.AddCommand(setCmd)
}
