package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock абстрагирует получение времени, чтобы логика была детерминированной в тестах
type Clock interface {
	Now() time.Time
}

// Real возвращает текущее время
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// IDGenerator абстрагирует генерацию уникальных идентификаторов
type IDGenerator interface {
	New() string
}

// UUID генерирует случайные UUID
type UUID struct{}

func (UUID) New() string { return uuid.New().String() }

// Skewed часы устройства, сдвинутые на оценку расхождения с сервером.
// Операции штампуются этим временем, чтобы сравнение с серверными метками было корректным.
type Skewed struct {
	base   Clock
	mu     sync.RWMutex
	offset time.Duration
}

func NewSkewed(base Clock) *Skewed {
	return &Skewed{base: base}
}

func (s *Skewed) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base.Now().Add(s.offset)
}

// Observe обновляет смещение по времени сервера, полученному за rtt
func (s *Skewed) Observe(server time.Time, sentAt time.Time, rtt time.Duration) {
	local := sentAt.Add(rtt / 2)
	s.mu.Lock()
	s.offset = server.Sub(local)
	s.mu.Unlock()
}

func (s *Skewed) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}
