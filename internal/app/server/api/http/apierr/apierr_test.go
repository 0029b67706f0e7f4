package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"revoked", device.ErrDeviceRevoked, http.StatusGone},
		{"entity not found", entity.ErrNotFound, http.StatusNotFound},
		{"device not found", device.ErrDeviceNotFound, http.StatusNotFound},
		{"invalid op wrapped", fmt.Errorf("%w: seq", entity.ErrInvalidOp), http.StatusUnprocessableEntity},
		{"invalid type", entity.ErrInvalidType, http.StatusUnprocessableEntity},
		{"missing device", entity.ErrDeviceMissing, http.StatusUnprocessableEntity},
		{"empty name", fmt.Errorf("%w: empty name", device.ErrInvalidDevice), http.StatusUnprocessableEntity},
		{"unknown", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se huma.StatusError
			require.ErrorAs(t, From(tt.err), &se)
			assert.Equal(t, tt.wantStatus, se.GetStatus())
		})
	}
}

func TestFrom_StaleCarriesCurrent(t *testing.T) {
	current := &entity.Entity{Type: entity.TypeRecipe, ID: "r1", Version: 4}

	err := From(fmt.Errorf("push: %w", &entity.StaleError{Current: current}))

	var stale *StaleError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, http.StatusConflict, stale.GetStatus())
	assert.Same(t, current, stale.Current)
}

func TestFrom_Nil(t *testing.T) {
	assert.NoError(t, From(nil))
}
