package sync

import (
	"recipesync/internal/domain/entity"
	syncdomain "recipesync/internal/domain/sync"
)

type statusOutput struct {
	Body syncdomain.Status
}

type EntityRef struct {
	Type entity.Type `json:"type" enum:"recipe,list,plan,profile"`
	ID   string      `json:"id" minLength:"1" maxLength:"128"`
}

type SyncRequest struct {
	// Trigger foreground - приложение вернулось на передний план
	Trigger  string      `json:"trigger,omitempty" enum:"manual,foreground"`
	Force    bool        `json:"force,omitempty"`
	Entities []EntityRef `json:"entities,omitempty" maxItems:"100"`
	// Wait выполнить цикл в рамках запроса и вернуть его итог
	Wait bool `json:"wait,omitempty"`
}

type syncInput struct {
	Body *SyncRequest `required:"false"`
}

type SyncResponse struct {
	SyncID  string                  `json:"sync_id"`
	Message string                  `json:"message"`
	Result  *syncdomain.CycleResult `json:"result,omitempty"`
}

type syncOutput struct {
	Body SyncResponse
}

type entityInput struct {
	Type string `path:"type" enum:"recipe,list,plan,profile"`
	ID   string `path:"id"`
}

type cycleOutput struct {
	Body *syncdomain.CycleResult
}

type resetInput struct {
	Confirm bool `query:"confirm" doc:"Must be true: drops the local queue and conflicts"`
}
