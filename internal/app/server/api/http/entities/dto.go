package entities

import "recipesync/internal/domain/entity"

type getInput struct {
	Type string `path:"type" enum:"recipe,list,plan,profile"`
	ID   string `path:"id"`
}

type getOutput struct {
	Body *entity.Entity
}

type changesInput struct {
	// Since RFC 3339; пусто - с самого начала
	Since string `query:"since" doc:"Return entities updated strictly after this RFC 3339 timestamp"`
	// After ключ type/id последней полученной сущности с меткой since
	After string `query:"after" doc:"Continue after this type/id within the since timestamp"`
	Limit int    `query:"limit" minimum:"0" maximum:"1000"`
}

type listOutput struct {
	Body EntitiesResponse
}

type EntitiesResponse struct {
	Entities []*entity.Entity `json:"entities"`
}

type pushInput struct {
	DeviceID string `header:"X-Device-ID" required:"true"`
	Body     entity.PushRequest
}

type pushOutput struct {
	Body *entity.PushResult
}
