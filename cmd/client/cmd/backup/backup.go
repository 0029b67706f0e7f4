package backup

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"recipesync/cmd/client/cmd/types"
	"recipesync/internal/app/client/api/http/backups"
	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/entity"
)

var (
	listPage      int
	listLimit     int
	compression   string
	includeImages bool
	outFile       string
)

// BackupCmd - родительская команда резервного копирования
var BackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Резервные копии",
	Long:  `Создание, просмотр, скачивание и удаление резервных копий локальных данных.`,
}

func counts(c entity.Counts) string {
	return fmt.Sprintf("%d/%d/%d/%d", c.Recipes, c.Lists, c.Plans, c.Profile)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Список резервных копий",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := env.Agent.Backups(cmd.Context(), listPage, listLimit)
		if err != nil {
			return fmt.Errorf("ошибка получения копий: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(resp)
		}
		if len(resp.Backups) == 0 {
			fmt.Println("Резервных копий нет")
			return nil
		}

		w := types.NewTable()
		fmt.Fprintf(w, "ID\tТип\tСтатус\tРазмер\tР/С/П/Пр\tСжатие\tСоздана\t\n")
		for _, b := range resp.Backups {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
				b.ID, b.Type, types.Colorize(string(b.Status)), b.Size,
				counts(b.ItemsCount), b.Compression,
				b.CreatedAt.Local().Format(time.DateTime))
		}
		w.Flush()
		if resp.HasMore {
			fmt.Printf("\nЕсть еще копии: --page %d\n", listPage+1)
		}
		return nil
	},
}

func printBackup(b *backup.Backup) {
	fmt.Printf("ID:          %s\n", b.ID)
	fmt.Printf("Тип:         %s\n", b.Type)
	fmt.Printf("Статус:      %s\n", types.Colorize(string(b.Status)))
	fmt.Printf("Размер:      %d байт\n", b.Size)
	fmt.Printf("Рецепты:     %d\n", b.ItemsCount.Recipes)
	fmt.Printf("Списки:      %d\n", b.ItemsCount.Lists)
	fmt.Printf("Планы:       %d\n", b.ItemsCount.Plans)
	fmt.Printf("Сжатие:      %s\n", b.Compression)
	fmt.Printf("Шифрование:  %v\n", b.Encrypted)
	if b.Checksum != "" {
		fmt.Printf("SHA-256:     %s\n", b.Checksum)
	}
	if b.ExpiresAt != nil {
		fmt.Printf("Истекает:    %s\n", b.ExpiresAt.Local().Format(time.DateTime))
	}
	if b.Error != "" {
		types.Warn("Ошибка: %s", b.Error)
	}
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Создать резервную копию",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		b, err := env.Agent.CreateBackup(cmd.Context(), backups.CreateRequest{
			Type:          backup.TypeManual,
			IncludeImages: includeImages,
			Compression:   backup.Compression(compression),
		})
		if err != nil {
			return fmt.Errorf("ошибка создания копии: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(b)
		}
		printBackup(b)
		if b.Status == backup.StatusFailed {
			return fmt.Errorf("копия не создана, повторите: recipesync backup retry %s", b.ID)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Сведения о копии",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		b, err := env.Agent.Backup(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка получения копии: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(b)
		}
		printBackup(b)
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Повторить неудавшуюся копию",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		b, err := env.Agent.RetryBackup(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка повтора: %w", err)
		}
		if env.JSON {
			return types.PrintJSON(b)
		}
		printBackup(b)
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Скачать артефакт копии",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		path := outFile
		if path == "" {
			path = args[0] + ".backup"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("ошибка создания файла: %w", err)
		}

		n, err := env.Agent.DownloadBackup(cmd.Context(), args[0], f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			return fmt.Errorf("ошибка скачивания: %w", err)
		}
		types.Success("Сохранено %d байт в %s", n, path)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить копию",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := types.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := env.Agent.DeleteBackup(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка удаления: %w", err)
		}
		types.Success("Копия %s удалена", args[0])
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "страница")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "копий на странице")
	createCmd.Flags().StringVar(&compression, "compression", "gzip", "сжатие: none, gzip или snappy")
	createCmd.Flags().BoolVar(&includeImages, "images", false, "включить изображения")
	downloadCmd.Flags().StringVarP(&outFile, "output", "o", "", "файл для сохранения")

	BackupCmd.AddCommand(listCmd, createCmd, showCmd, retryCmd, downloadCmd, deleteCmd)
}
