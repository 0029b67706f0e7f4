package health

import "time"

type Input struct{}

type Output struct {
	Body Response
}

type Response struct {
	Status string `json:"status" example:"OK" doc:"Health status of the service"`
}

type pingOutput struct {
	Body PingResponse
}

// PingResponse время сервера, по нему устройство оценивает расхождение часов
type PingResponse struct {
	ServerTime time.Time `json:"server_time" doc:"Current server time in UTC"`
}
