// cmd/client/cmd/auth/register.go
package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/app/client"
	"recipesync/internal/domain/user"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать нового пользователя",
	Long: `Регистрация нового пользователя на сервере RecipeSync.

После регистрации войдите в аккаунт, чтобы синхронизировать устройства.`,
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
		confirm, err := readPassword("Повторите пароль: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("пароли не совпадают")
		}
		if len(password) < 8 {
			return fmt.Errorf("пароль должен содержать минимум 8 символов")
		}

		err = env.Server.Register(cmd.Context(), user.Credentials{Login: login, Password: password})
		if errors.Is(err, client.ErrLoginTaken) {
			return fmt.Errorf("логин %q уже занят", login)
		}
		if err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		types.Success("Регистрация завершена")
		fmt.Println("Теперь войдите в систему: recipesync auth login")
		return nil
	},
}
