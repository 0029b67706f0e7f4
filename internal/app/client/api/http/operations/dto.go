package operations

import (
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
)

type listInput struct {
	Page   int    `query:"page" minimum:"1" default:"1"`
	Limit  int    `query:"limit" minimum:"1" maximum:"100" default:"20"`
	Status string `query:"status" enum:"pending,syncing,completed,failed"`
}

type OperationsResponse struct {
	Operations []*oplog.Operation `json:"operations"`
	HasMore    bool               `json:"has_more"`
}

type listOutput struct {
	Body OperationsResponse
}

type idInput struct {
	ID string `path:"id"`
}

type operationOutput struct {
	Body *oplog.Operation
}

// EnqueueRequest локальная мутация от приложения
type EnqueueRequest struct {
	Type       oplog.Type     `json:"type" enum:"create,update,delete"`
	EntityType entity.Type    `json:"entity_type" enum:"recipe,list,plan,profile"`
	EntityID   string         `json:"entity_id" minLength:"1" maxLength:"128"`
	Fields     map[string]any `json:"fields,omitempty"`
}

type enqueueInput struct {
	Body EnqueueRequest
}
