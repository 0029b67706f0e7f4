package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"min=1,max=10"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "a", Count: 3}))

	err := Struct(sample{Count: 11})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name: failed required")
	assert.Contains(t, err.Error(), "Count: failed max=10")
}
