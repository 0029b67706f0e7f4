package httpmw

import (
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
)

func TestContainer_GetAllAndClear(t *testing.T) {
	c := NewContainer()
	noop := func(ctx huma.Context, next func(huma.Context)) { next(ctx) }

	c.Add(noop)
	c.Add(noop)

	got := c.GetAllAndClear()
	assert.Len(t, got, 2)
	assert.Empty(t, c.GetAllAndClear())
}
