package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/session"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) Create(ctx context.Context, userID int) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Validate(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type whoamiOutput struct {
	Body struct {
		UserID int `json:"user_id"`
	}
}

func setup(t *testing.T, sess session.Servicer) humatest.TestAPI {
	_, api := humatest.New(t)
	mw := New(api, sess, slog.Default())
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/whoami",
		Middlewares: huma.Middlewares{mw.Middleware()},
	}, func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
		id, _ := GetUserID(ctx)
		out := &whoamiOutput{}
		out.Body.UserID = id
		return out, nil
	})
	return api
}

func TestAuth_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		setupMock  func(m *MockSession)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no header",
			setupMock:  func(m *MockSession) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not bearer",
			header:     "Authorization: Basic abc",
			setupMock:  func(m *MockSession) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "invalid token",
			header: "Authorization: Bearer bad",
			setupMock: func(m *MockSession) {
				m.On("Validate", mock.Anything, "bad").Return(0, session.ErrInvalidSession)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "valid token",
			header: "Authorization: Bearer good",
			setupMock: func(m *MockSession) {
				m.On("Validate", mock.Anything, "good").Return(42, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"user_id":42`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := new(MockSession)
			tt.setupMock(sess)
			api := setup(t, sess)

			var args []any
			if tt.header != "" {
				args = append(args, tt.header)
			}
			resp := api.Get("/whoami", args...)

			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
			sess.AssertExpectations(t)
		})
	}
}
