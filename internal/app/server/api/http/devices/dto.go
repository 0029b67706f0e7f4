package devices

import "recipesync/internal/domain/device"

type touchInput struct {
	DeviceID string `header:"X-Device-ID" required:"true"`
	Body     device.TouchRequest
}

type deviceOutput struct {
	Body *device.DeviceInfo
}

type listInput struct {
	DeviceID string `header:"X-Device-ID"`
}

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

type revokeInput struct {
	ID string `path:"id"`
}
