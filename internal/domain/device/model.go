package device

import "time"

// DeviceInfo устройство аккаунта
type DeviceInfo struct {
	ID              string    `json:"id"`
	AccountID       int       `json:"-"`
	Name            string    `json:"name"`
	Type            string    `json:"type" enum:"mobile,tablet,desktop,web"`
	Platform        string    `json:"platform"`
	Version         string    `json:"version"`
	LastSeen        time.Time `json:"last_seen"`
	CreatedAt       time.Time `json:"created_at"`
	IsCurrentDevice bool      `json:"is_current_device"`
}

// TouchRequest сведения, которые устройство сообщает в каждом цикле синхронизации
type TouchRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
}
