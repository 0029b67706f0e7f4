package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	syncAPI "recipesync/internal/app/client/api/http/sync"
	"recipesync/internal/domain/entity"
	syncdomain "recipesync/internal/domain/sync"
)

var (
	forceSync  bool
	background bool
	entityKeys []string
	confirm    bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация",
	Long: `Запускает цикл синхронизации в агенте: отправка журнала изменений,
получение изменений с сервера и разрешение конфликтов по политике.

Без подкоманды выполняет цикл и печатает его итог.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		req := syncAPI.SyncRequest{Trigger: "manual", Force: forceSync, Wait: !background}
		for _, s := range entityKeys {
			key, err := entity.ParseKey(s)
			if err != nil {
				return err
			}
			req.Entities = append(req.Entities, syncAPI.EntityRef{Type: key.Type, ID: key.ID})
		}

		start := time.Now()
		resp, err := env.Agent.Sync(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(resp)
		}
		if resp.Result == nil {
			types.Success("Синхронизация запущена (%s)", resp.SyncID)
			return nil
		}

		printCycle(resp.Result)
		if resp.Result.Error != "" {
			types.Warn("Цикл завершился с ошибкой: %s", resp.Result.Error)
			return nil
		}
		types.Success("Синхронизация завершена за %v", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func printCycle(res *syncdomain.CycleResult) {
	fmt.Printf("Отправлено:  %d (повторов %d)\n", res.Pushed, res.Duplicates)
	fmt.Printf("Получено:    %d\n", res.Pulled)
	fmt.Printf("Конфликтов:  %d\n", res.Conflicts)
	fmt.Printf("С ошибками:  %d\n", res.Failed)
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		st, err := env.Agent.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("агент недоступен: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(st)
		}

		fmt.Printf("Состояние:        %s\n", types.Colorize(string(st.State)))
		fmt.Printf("Сервер доступен:  %v\n", st.IsOnline)
		if st.LastSyncTime != nil {
			fmt.Printf("Последний цикл:   %s\n", st.LastSyncTime.Local().Format(time.DateTime))
		} else {
			fmt.Println("Последний цикл:   еще не было")
		}
		fmt.Printf("В очереди:        %d\n", st.PendingChanges)
		fmt.Printf("Конфликтов:       %d\n", st.ConflictsCount)
		if st.Revoked {
			types.Warn("Устройство отозвано, синхронизация остановлена")
		}
		if len(st.SyncErrors) > 0 {
			fmt.Println()
			fmt.Println("Ошибки:")
			for _, e := range st.SyncErrors {
				fmt.Printf("  %s %s/%s (попыток %d): %s\n", e.OperationID, e.EntityType, e.EntityID, e.RetryCount, e.Error)
			}
		}
		return nil
	},
}

func simple(use, short, done string, fn func(ctx context.Context, env *types.Env) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := types.FromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := fn(cmd.Context(), env); err != nil {
				return err
			}
			types.Success("%s", done)
			return nil
		},
	}
}

var PauseCmd = simple("pause", "Приостановить синхронизацию", "Синхронизация приостановлена",
	func(ctx context.Context, env *types.Env) error { return env.Agent.Pause(ctx) })

var ResumeCmd = simple("resume", "Возобновить синхронизацию", "Синхронизация возобновлена",
	func(ctx context.Context, env *types.Env) error { return env.Agent.Resume(ctx) })

var ResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Сбросить локальное состояние синхронизации",
	Long: `Очищает журнал операций, конфликты и кэш, затем загружает полный
снимок с сервера. Неотправленные изменения будут потеряны.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if !confirm {
			return fmt.Errorf("сброс удаляет неотправленные изменения, повторите с флагом --confirm")
		}
		if err := env.Agent.Reset(cmd.Context(), true); err != nil {
			return fmt.Errorf("ошибка сброса: %w", err)
		}
		types.Success("Локальное состояние загружено с сервера заново")
		return nil
	},
}

func init() {
	SyncCmd.Flags().BoolVar(&forceSync, "force", false, "синхронизировать и через лимитную сеть")
	SyncCmd.Flags().BoolVar(&background, "background", false, "не ждать завершения цикла")
	SyncCmd.Flags().StringSliceVar(&entityKeys, "entity", nil, "ограничить цикл сущностями (recipe/ID)")
	ResetCmd.Flags().BoolVar(&confirm, "confirm", false, "подтвердить сброс")

	SyncCmd.AddCommand(StatusCmd, PauseCmd, ResumeCmd, ResetCmd, OpsCmd, ConflictsCmd, SettingsCmd)
}
