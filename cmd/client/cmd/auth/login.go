// cmd/client/cmd/auth/login.go
package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/domain/user"
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в аккаунт",
	Long: `Аутентификация на сервере RecipeSync.

Токен сохраняется в каталоге конфигурации, запущенный агент подхватит его
при следующем цикле синхронизации.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		login, err := readLogin()
		if err != nil {
			return err
		}
		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}

		token, err := env.Server.Login(cmd.Context(), user.Credentials{Login: login, Password: password})
		if errors.Is(err, user.ErrInvalidAuth) {
			return fmt.Errorf("неверный логин или пароль")
		}
		if err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}
		if err := env.Tokens.Save(token); err != nil {
			return fmt.Errorf("ошибка сохранения токена: %w", err)
		}

		types.Success("Вход выполнен")
		return nil
	},
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из аккаунта",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := env.Tokens.Clear(); err != nil {
			return fmt.Errorf("ошибка удаления токена: %w", err)
		}
		types.Success("Токен удален, синхронизация остановится до следующего входа")
		return nil
	},
}
