package conflicts

import "recipesync/internal/domain/conflict"

type listInput struct {
	Page     int  `query:"page" minimum:"1" default:"1"`
	Limit    int  `query:"limit" minimum:"1" maximum:"100" default:"20"`
	OnlyOpen bool `query:"open" doc:"Only unresolved conflicts"`
}

type ConflictsResponse struct {
	Conflicts []*conflict.Conflict `json:"conflicts"`
	HasMore   bool                 `json:"has_more"`
}

type listOutput struct {
	Body ConflictsResponse
}

type ResolveRequest struct {
	Resolution conflict.Resolution `json:"resolution" enum:"local,remote,merge"`
	// MergedData значения полей, измененных обеими сторонами, для merge
	MergedData map[string]any `json:"merged_data,omitempty"`
}

type resolveInput struct {
	ID   string `path:"id"`
	Body ResolveRequest
}

type conflictOutput struct {
	Body *conflict.Conflict
}

type ResolveAllRequest struct {
	Resolution conflict.Resolution `json:"resolution" enum:"local,remote,merge"`
}

type resolveAllInput struct {
	Body ResolveAllRequest
}

type ResolveAllResponse struct {
	Resolved int    `json:"resolved"`
	Error    string `json:"error,omitempty"`
}

type resolveAllOutput struct {
	Body ResolveAllResponse
}
