package migration

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockMigrator - мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)

	// Настраиваем поведение
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotSource, gotDB string
	// Инжектим мок через фабрику
	engine := func(source, db string) (Migrator, error) {
		gotSource, gotDB = source, db
		return mockM, nil
	}

	mg := NewMigration("file://migrations/server", "postgres://localhost/recipes", engine)
	err := mg.Up()

	assert.NoError(t, err)
	assert.Equal(t, "file://migrations/server", gotSource)
	assert.Equal(t, "postgres://localhost/recipes", gotDB)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой в методе Up()
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	engine := func(source, db string) (Migrator, error) {
		return mockM, nil
	}

	mg := NewMigration("", "", engine)
	err := mg.Up()

	assert.NoError(t, err)
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	mg := NewMigration("", "", engine)
	err := mg.Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestMigration_Up_CloseErrors(t *testing.T) {
	mockM := new(MockMigrator)
	upErr := errors.New("dirty database")
	mockM.On("Up").Return(upErr)
	mockM.On("Close").Return(errors.New("source"), errors.New("db"))

	engine := func(source, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration("", "", engine).Up()

	assert.ErrorIs(t, err, upErr)
	assert.Contains(t, err.Error(), "migration source error: source")
	assert.Contains(t, err.Error(), "migration database error: db")
}

func TestEmbeddedEngine_MissingDir(t *testing.T) {
	engine := EmbeddedEngine(fstest.MapFS{})

	_, err := engine("migrations", "sqlite3://unused.db")

	assert.Error(t, err)
}
