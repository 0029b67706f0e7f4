package restores

import "recipesync/internal/domain/restore"

type startInput struct {
	Body restore.Request
}

type restoreOutput struct {
	Body *restore.Restore
}

type idInput struct {
	ID string `path:"id"`
}

type RestoresResponse struct {
	Restores []*restore.Restore `json:"restores"`
}

type listOutput struct {
	Body RestoresResponse
}
