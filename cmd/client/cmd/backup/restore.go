package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/domain/restore"
)

var (
	policy        string
	restoreImages bool
	detach        bool
)

// RestoreCmd - родительская команда восстановления
var RestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Восстановить данные из резервной копии",
	Long: `Применяет резервную копию к текущим данным. Синхронизация на время
восстановления приостанавливается, восстановленные сущности уходят на сервер
обычными операциями журнала.

Политики расхождений: skip, replace, merge, rename, ask.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		r, err := env.Agent.StartRestore(cmd.Context(), restore.Request{
			BackupID:           args[0],
			ConflictResolution: restore.Policy(policy),
			RestoreImages:      restoreImages,
		})
		if err != nil {
			return fmt.Errorf("ошибка запуска восстановления: %w", err)
		}
		if !detach {
			if r, err = waitRestore(cmd.Context(), env, r.ID); err != nil {
				return err
			}
		}
		if env.JSON {
			return types.PrintJSON(r)
		}
		printRestore(r)
		return nil
	},
}

func waitRestore(ctx context.Context, env *types.Env, id string) (*restore.Restore, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		r, err := env.Agent.Restore(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения хода восстановления: %w", err)
		}
		if !r.Status.Active() {
			return r, nil
		}
		if !env.JSON {
			fmt.Printf("\rВосстановлено %d из %d (%.0f%%)", r.Processed, r.Total, r.Progress)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printRestore(r *restore.Restore) {
	fmt.Println()
	fmt.Printf("ID:          %s\n", r.ID)
	fmt.Printf("Копия:       %s\n", r.BackupID)
	fmt.Printf("Статус:      %s\n", types.Colorize(string(r.Status)))
	fmt.Printf("Обработано:  %d из %d\n", r.Processed, r.Total)
	fmt.Printf("Рецепты:     %d\n", r.ItemsRestored.Recipes)
	fmt.Printf("Списки:      %d\n", r.ItemsRestored.Lists)
	fmt.Printf("Планы:       %d\n", r.ItemsRestored.Plans)
	fmt.Printf("Без изменений: %d\n", r.Unchanged)
	if len(r.Conflicts) > 0 {
		fmt.Println("Расхождения:")
		for _, c := range r.Conflicts {
			res := string(c.Resolution)
			if res == "" {
				res = "требует решения"
			}
			fmt.Printf("  %s/%s: %s\n", c.EntityType, c.EntityID, res)
		}
	}
	for _, f := range r.Failures {
		types.Warn("%s/%s: %s", f.EntityType, f.EntityID, f.Error)
	}
	if r.Error != "" {
		types.Failure("Восстановление прервано: %s", r.Error)
	}
}

var restoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "История восстановлений",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := env.Agent.Restores(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения истории: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(resp)
		}

		w := types.NewTable()
		fmt.Fprintf(w, "ID\tКопия\tСтатус\tПолитика\tПрогресс\tНачато\t\n")
		for _, r := range resp.Restores {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\t%s\t\n",
				r.ID, r.BackupID, types.Colorize(string(r.Status)), r.ConflictResolution,
				r.Progress, r.StartedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var restoreShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Ход и манифест восстановления",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		r, err := env.Agent.Restore(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка получения восстановления: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(r)
		}
		printRestore(r)
		return nil
	},
}

var restoreCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Отменить восстановление",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := env.Agent.CancelRestore(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка отмены: %w", err)
		}
		types.Success("Отмена запрошена, уже восстановленные сущности останутся")
		return nil
	},
}

func init() {
	RestoreCmd.Flags().StringVar(&policy, "policy", "skip", "политика расхождений")
	RestoreCmd.Flags().BoolVar(&restoreImages, "images", false, "восстановить изображения")
	RestoreCmd.Flags().BoolVar(&detach, "detach", false, "не ждать завершения")

	RestoreCmd.AddCommand(restoreListCmd, restoreShowCmd, restoreCancelCmd)
}
