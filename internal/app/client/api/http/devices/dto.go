package devices

import "recipesync/internal/domain/device"

type listOutput struct {
	Body DevicesResponse
}

type DevicesResponse struct {
	Devices []*device.DeviceInfo `json:"devices"`
}

type renameInput struct {
	ID   string `path:"id"`
	Body RenameRequest
}

type RenameRequest struct {
	Name string `json:"name" minLength:"1" maxLength:"100"`
}

type deviceOutput struct {
	Body *device.DeviceInfo
}

type revokeInput struct {
	ID string `path:"id"`
}
