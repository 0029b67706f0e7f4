package device

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
)

// DeviceCmd - родительская команда для устройств аккаунта
var DeviceCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"device"},
	Short:   "Устройства аккаунта",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		list, err := env.Agent.Devices(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения устройств: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(list)
		}

		w := types.NewTable()
		fmt.Fprintf(w, "\tID\tИмя\tТип\tПлатформа\tВерсия\tБыло в сети\t\n")
		for _, d := range list {
			mark := ""
			if d.IsCurrentDevice {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				mark, d.ID, d.Name, d.Type, d.Platform, d.Version,
				d.LastSeen.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Переименовать устройство",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		d, err := env.Agent.RenameDevice(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("ошибка переименования: %w", err)
		}
		types.Success("Устройство %s теперь называется %q", d.ID, d.Name)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Отозвать устройство",
	Long: `Отзывает устройство: сервер перестанет принимать от него изменения,
а агент на нем остановит синхронизацию и очистит локальное состояние.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := env.Agent.RevokeDevice(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка отзыва: %w", err)
		}
		types.Success("Устройство %s отозвано", args[0])
		return nil
	},
}

func init() {
	DeviceCmd.AddCommand(renameCmd, revokeCmd)
}
