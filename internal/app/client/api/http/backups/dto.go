package backups

import "recipesync/internal/domain/backup"

type listInput struct {
	Page  int `query:"page" minimum:"1" default:"1"`
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20"`
}

type BackupsResponse struct {
	Backups []*backup.Backup `json:"backups"`
	HasMore bool             `json:"has_more"`
}

type listOutput struct {
	Body BackupsResponse
}

type CreateRequest struct {
	// Type по умолчанию manual
	Type          backup.Type        `json:"type,omitempty" enum:"manual,automatic" default:"manual"`
	IncludeImages bool               `json:"include_images,omitempty"`
	Compression   backup.Compression `json:"compression,omitempty" enum:"none,gzip,snappy"`
}

type createInput struct {
	Body CreateRequest
}

type idInput struct {
	ID string `path:"id"`
}

type backupOutput struct {
	Body *backup.Backup
}
