package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixed time.Time

func (f fixed) Now() time.Time { return time.Time(f) }

func TestSkewed_Observe(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s := NewSkewed(fixed(base))
	assert.Equal(t, base, s.Now())

	// сервер опережает устройство на 30 секунд, запрос занял 2 секунды
	s.Observe(base.Add(31*time.Second), base, 2*time.Second)
	assert.Equal(t, 30*time.Second, s.Offset())
	assert.Equal(t, base.Add(30*time.Second), s.Now())
}

func TestUUID_New(t *testing.T) {
	g := UUID{}
	a, b := g.New(), g.New()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
