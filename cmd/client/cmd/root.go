// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/app/client"
	"recipesync/internal/app/client/config"
	"recipesync/internal/utils/logger"
)

var (
	cfgFile    string
	debug      bool
	jsonOutput bool
	serverAddr string
	agentURL   string
)

var rootCmd = &cobra.Command{
	Use:   "recipesync",
	Short: "RecipeSync - синхронизация и резервное копирование рецептов",
	Long: `RecipeSync синхронизирует рецепты, списки покупок, планы питания и
профиль между устройствами одного аккаунта.

Агент (recipesync serve) держит локальную копию данных и журнал изменений,
остальные команды обращаются к его локальному API.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		types.Failure("Ошибка: %v", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverAddr != "" {
		cfg.ServerAddress = serverAddr
	}

	log := logger.New(cfg.Env)
	if !debug && cmd.Name() != serveCmd.Name() {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	base := cfg.AgentURL()
	if agentURL != "" {
		base = agentURL
	}
	tokens := client.NewTokenStore(cfg.TokenPath)

	env := &types.Env{
		Config: cfg,
		Log:    log,
		Agent:  client.NewAgentClient(base, cfg.RequestTimeout, log),
		Server: client.NewHTTPClient(cfg.ServerURL(), cfg.RequestTimeout, tokens, "", log),
		Tokens: tokens,
		JSON:   jsonOutput,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, types.ClientAppKey, env))
	return nil
}

func init() {
	// Глобальные флаги
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "адрес сервера RecipeSync (host:port)")
	rootCmd.PersistentFlags().StringVar(&agentURL, "agent", "", "URL локального API агента")
}
