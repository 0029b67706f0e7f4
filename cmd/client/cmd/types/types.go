// Package types общее окружение команд клиента
package types

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client"
	"recipesync/internal/app/client/config"
)

type ctxKey string

const ClientAppKey ctxKey = "app"

// Env зависимости, которые root передает подкомандам через контекст
type Env struct {
	Config *config.Config
	Log    *slog.Logger
	// Agent локальный API запущенного агента
	Agent *client.AgentClient
	// Server прямой доступ к серверу для входа и регистрации
	Server *client.HTTPClient
	Tokens *client.TokenStore
	JSON   bool
}

var ErrNoEnv = errors.New("приложение не инициализировано")

func FromContext(ctx context.Context) (*Env, error) {
	env, ok := ctx.Value(ClientAppKey).(*Env)
	if !ok || env == nil {
		return nil, ErrNoEnv
	}
	return env, nil
}

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
)

func Success(format string, args ...any) {
	fmt.Println(ok("✓ ") + fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	fmt.Println(warn("⚠ ") + fmt.Sprintf(format, args...))
}

func Failure(format string, args ...any) {
	fmt.Fprintln(os.Stderr, bad("✗ ")+fmt.Sprintf(format, args...))
}

// Colorize подсвечивает статусы операций, копий и восстановлений
func Colorize(status string) string {
	switch status {
	case "completed", "idle", "resolved":
		return ok(status)
	case "failed", "expired", "paused":
		return bad(status)
	case "pending", "syncing", "creating", "preparing", "restoring", "conflict_pending":
		return warn(status)
	}
	return status
}

func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func NewTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func Truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
