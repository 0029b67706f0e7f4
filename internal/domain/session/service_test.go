package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/testutil"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string, now time.Time) (int, error) {
	args := m.Called(ctx, tokenHash, now)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	clk := testutil.FixedClock()
	service := NewService(mockRepo, clk, time.Hour, slog.Default())

	var savedHash string
	mockRepo.On("Create", mock.Anything, 123, mock.AnythingOfType("string"), clk.Now().Add(time.Hour)).
		Run(func(args mock.Arguments) { savedHash = args.String(2) }).
		Return(nil)

	token, err := service.Create(context.Background(), 123)
	require.NoError(t, err)
	// base64 от 32 байт с паддингом
	assert.Len(t, token, 44)
	assert.Equal(t, hashToken(token), savedHash)
	assert.NotEqual(t, token, savedHash)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, testutil.FixedClock(), 0, slog.Default())

	mockRepo.On("Create", mock.Anything, 123, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(errors.New("database error"))

	_, err := service.Create(context.Background(), 123)
	assert.ErrorContains(t, err, "database error")
}

func TestService_CreateAndValidate(t *testing.T) {
	mockRepo := new(MockRepository)
	clk := testutil.FixedClock()
	service := NewService(mockRepo, clk, 0, slog.Default())

	mockRepo.On("Create", mock.Anything, 123, mock.AnythingOfType("string"), clk.Now().Add(DefaultTTL)).Return(nil)
	token, err := service.Create(context.Background(), 123)
	require.NoError(t, err)

	mockRepo.On("Validate", mock.Anything, hashToken(token), clk.Now()).Return(123, nil)
	userID, err := service.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 123, userID)

	mockRepo.AssertExpectations(t)
}

func TestService_Validate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		repoErr  error
		wantErr  error
		wantCall bool
	}{
		{name: "empty token", token: "", wantErr: ErrInvalidSession},
		{name: "unknown token", token: "nope", repoErr: ErrInvalidSession, wantErr: ErrInvalidSession, wantCall: true},
		{name: "database error", token: "tok", repoErr: errors.New("database error"), wantCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, testutil.FixedClock(), 0, slog.Default())
			if tt.wantCall {
				mockRepo.On("Validate", mock.Anything, hashToken(tt.token), mock.AnythingOfType("time.Time")).Return(0, tt.repoErr)
			}

			_, err := service.Validate(context.Background(), tt.token)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, ErrInvalidSession)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_Purge(t *testing.T) {
	clk := testutil.FixedClock()

	t.Run("deletes sessions expired by now", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("DeleteExpired", mock.Anything, clk.Now()).Return(int64(3), nil)
		service := NewService(mockRepo, clk, 0, slog.Default())

		n, err := service.Purge(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("DeleteExpired", mock.Anything, clk.Now()).Return(int64(0), errors.New("db down"))
		service := NewService(mockRepo, clk, 0, slog.Default())

		_, err := service.Purge(context.Background())

		assert.Error(t, err)
	})
}
