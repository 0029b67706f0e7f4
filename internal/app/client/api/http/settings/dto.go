package settings

import "recipesync/internal/domain/settings"

type settingsOutput struct {
	Body settings.Settings
}

type updateInput struct {
	Body settings.Settings
}
