package sync

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/app/client/api/http/operations"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
)

var (
	opsPage   int
	opsLimit  int
	opsStatus string
	opType    string
	opFields  string
)

var OpsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Журнал операций",
	Long:  `Просмотр и управление локальными изменениями, ожидающими отправки на сервер.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := env.Agent.Operations(cmd.Context(), opsPage, opsLimit, oplog.Status(opsStatus))
		if err != nil {
			return fmt.Errorf("ошибка получения журнала: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(resp)
		}
		if len(resp.Operations) == 0 {
			fmt.Println("Журнал пуст")
			return nil
		}

		w := types.NewTable()
		fmt.Fprintf(w, "ID\tТип\tСущность\tСтатус\tПопыток\tСоздана\tОшибка\t\n")
		for _, op := range resp.Operations {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%d\t%s\t%s\t\n",
				op.ID, op.Type, op.EntityType, op.EntityID,
				types.Colorize(string(op.Status)), op.RetryCount,
				op.Timestamp.Local().Format(time.DateTime),
				types.Truncate(op.LastError, 40))
		}
		w.Flush()
		if resp.HasMore {
			fmt.Printf("\nЕсть еще операции: --page %d\n", opsPage+1)
		}
		return nil
	},
}

var opsAddCmd = &cobra.Command{
	Use:   "add <type/id>",
	Short: "Поставить изменение в очередь",
	Example: `  recipesync sync ops add recipe/r1 --type create --fields '{"title":"Борщ"}'
  recipesync sync ops add list/l1 --type delete`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		key, err := entity.ParseKey(args[0])
		if err != nil {
			return err
		}
		req := operations.EnqueueRequest{Type: oplog.Type(opType), EntityType: key.Type, EntityID: key.ID}
		if opFields != "" {
			if err := json.Unmarshal([]byte(opFields), &req.Fields); err != nil {
				return fmt.Errorf("поля должны быть JSON-объектом: %w", err)
			}
		}

		op, err := env.Agent.Enqueue(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("ошибка постановки в очередь: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(op)
		}
		types.Success("Операция %s поставлена в очередь (seq %d)", op.ID, op.Seq)
		return nil
	},
}

var opsRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Повторить операцию с ошибкой",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		op, err := env.Agent.RetryOperation(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка повтора: %w", err)
		}
		types.Success("Операция %s снова в очереди", op.ID)
		return nil
	},
}

var opsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Отменить неотправленную операцию",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := env.Agent.CancelOperation(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка отмены: %w", err)
		}
		types.Success("Операция %s отменена", args[0])
		return nil
	},
}

func init() {
	OpsCmd.Flags().IntVar(&opsPage, "page", 1, "страница")
	OpsCmd.Flags().IntVar(&opsLimit, "limit", 20, "операций на странице")
	OpsCmd.Flags().StringVar(&opsStatus, "status", "", "фильтр по статусу (pending, syncing, failed, completed)")
	opsAddCmd.Flags().StringVar(&opType, "type", "update", "тип операции (create, update, delete)")
	opsAddCmd.Flags().StringVar(&opFields, "fields", "", "изменяемые поля в JSON")

	OpsCmd.AddCommand(opsAddCmd, opsRetryCmd, opsCancelCmd)
}
