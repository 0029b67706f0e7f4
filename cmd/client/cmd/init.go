// cmd/client/cmd/init.go
package cmd

import (
	"recipesync/cmd/client/cmd/auth"
	"recipesync/cmd/client/cmd/backup"
	"recipesync/cmd/client/cmd/device"
	"recipesync/cmd/client/cmd/sync"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Добавляем команды аутентификации
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	rootCmd.AddCommand(sync.SyncCmd)

	rootCmd.AddCommand(backup.BackupCmd)
	rootCmd.AddCommand(backup.RestoreCmd)
	rootCmd.AddCommand(device.DeviceCmd)
}
