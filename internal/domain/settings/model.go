package settings

import (
	"time"

	"recipesync/internal/domain/conflict"
)

// Frequency периодичность автоматических резервных копий
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Due наступил ли срок следующей копии после last
func (f Frequency) Due(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	var next time.Time
	switch f {
	case FrequencyWeekly:
		next = last.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = last.AddDate(0, 1, 0)
	default:
		next = last.AddDate(0, 0, 1)
	}
	return !now.Before(next)
}

// Settings параметры синхронизации устройства. Меняются только явным обновлением.
type Settings struct {
	AutoSync bool `json:"auto_sync"`
	// SyncInterval в минутах
	SyncInterval       int             `json:"sync_interval" validate:"min=1,max=1440" minimum:"1" maximum:"1440"`
	SyncOnWiFiOnly     bool            `json:"sync_on_wifi_only"`
	AutoBackup         bool            `json:"auto_backup"`
	BackupFrequency    Frequency       `json:"backup_frequency" validate:"required,oneof=daily weekly monthly" enum:"daily,weekly,monthly"`
	MaxBackups         int             `json:"max_backups" validate:"min=1,max=100" minimum:"1" maximum:"100"`
	ConflictResolution conflict.Policy `json:"conflict_resolution" validate:"required,oneof=local remote newest ask" enum:"local,remote,newest,ask"`
	SyncNotifications  bool            `json:"sync_notifications"`
}

func (s Settings) Interval() time.Duration {
	return time.Duration(s.SyncInterval) * time.Minute
}

func Default() Settings {
	return Settings{
		AutoSync:           true,
		SyncInterval:       15,
		SyncOnWiFiOnly:     false,
		AutoBackup:         true,
		BackupFrequency:    FrequencyWeekly,
		MaxBackups:         5,
		ConflictResolution: conflict.PolicyAsk,
		SyncNotifications:  true,
	}
}
