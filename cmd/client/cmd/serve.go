package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/app/client"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить агент синхронизации",
	Long: `Запускает агент: фоновую синхронизацию по расписанию, автоматические
резервные копии и локальный HTTP API, через который работают остальные команды.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := client.New(ctx, env.Config, env.Log)
		if err != nil {
			return fmt.Errorf("ошибка инициализации агента: %w", err)
		}
		defer func() {
			if err := app.Close(); err != nil {
				env.Log.Error("close agent", "error", err)
			}
		}()

		if env.Tokens.Token() == "" {
			types.Warn("Вход не выполнен, синхронизация начнется после: recipesync auth login")
		}
		types.Success("Агент %s слушает %s", app.DeviceID(), env.Config.Listen)
		return app.Run(ctx)
	},
}
