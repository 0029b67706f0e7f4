package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/app/client/api/http/conflicts"
	"recipesync/internal/domain/conflict"
)

var (
	showResolved bool
	resolution   string
	mergedData   string
)

var ConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Конфликты синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := env.Agent.Conflicts(cmd.Context(), 1, 100, !showResolved)
		if err != nil {
			return fmt.Errorf("ошибка получения конфликтов: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(resp)
		}
		if len(resp.Conflicts) == 0 {
			types.Success("Конфликтов нет")
			return nil
		}

		w := types.NewTable()
		fmt.Fprintf(w, "ID\tСущность\tПоля\tЛокально\tНа сервере\tРешение\t\n")
		for _, c := range resp.Conflicts {
			res := "-"
			if c.Resolution != "" {
				res = string(c.Resolution)
			}
			fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s\t%s\t%s\t\n",
				c.ID, c.EntityType, c.EntityID,
				strings.Join(c.ConflictFields, ","),
				c.LocalTimestamp.Local().Format(time.DateTime),
				c.RemoteTimestamp.Local().Format(time.DateTime),
				res)
		}
		return w.Flush()
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Разрешить конфликт",
	Example: `  recipesync sync conflicts resolve c1 --resolution remote
  recipesync sync conflicts resolve c1 --resolution merge --data '{"title":"Борщ"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		req := conflicts.ResolveRequest{Resolution: conflict.Resolution(resolution)}
		if mergedData != "" {
			if err := json.Unmarshal([]byte(mergedData), &req.MergedData); err != nil {
				return fmt.Errorf("данные слияния должны быть JSON-объектом: %w", err)
			}
		}

		c, err := env.Agent.ResolveConflict(cmd.Context(), args[0], req)
		if err != nil {
			return fmt.Errorf("ошибка разрешения: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(c)
		}
		types.Success("Конфликт %s разрешен (%s)", c.ID, c.Resolution)
		return nil
	},
}

var resolveAllCmd = &cobra.Command{
	Use:   "resolve-all",
	Short: "Разрешить все открытые конфликты одним способом",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := env.Agent.ResolveAll(cmd.Context(), conflict.Resolution(resolution))
		if err != nil {
			return fmt.Errorf("ошибка разрешения: %w", err)
		}
		if resp.Error != "" {
			types.Warn("Разрешено %d, остановлено на ошибке: %s", resp.Resolved, resp.Error)
			return nil
		}
		types.Success("Разрешено конфликтов: %d", resp.Resolved)
		return nil
	},
}

func init() {
	ConflictsCmd.Flags().BoolVar(&showResolved, "all", false, "показывать и разрешенные")
	ConflictsCmd.PersistentFlags().StringVar(&resolution, "resolution", "local", "local, remote или merge")
	resolveCmd.Flags().StringVar(&mergedData, "data", "", "значения полей для merge в JSON")

	ConflictsCmd.AddCommand(resolveCmd, resolveAllCmd)
}
