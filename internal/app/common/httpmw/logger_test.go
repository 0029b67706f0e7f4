package httpmw

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

type pingOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func TestLogger_Middleware(t *testing.T) {
	tests := []struct {
		name    string
		headers []any
		want    []string
		absent  []string
	}{
		{
			name:    "запрос устройства",
			headers: []any{"X-Device-ID: phone"},
			want:    []string{`"path":"/ping"`, `"method":"GET"`, `"status":200`, `"device":"phone"`},
		},
		{
			name:   "запрос без устройства",
			want:   []string{`"path":"/ping"`, `"status":200`},
			absent: []string{`"device"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, nil))

			mws := NewContainer()
			mws.Add(NewLogger(log).Middleware())

			_, api := humatest.New(t)
			huma.Register(api, huma.Operation{
				OperationID: "ping",
				Method:      http.MethodGet,
				Path:        "/ping",
				Middlewares: mws.GetAllAndClear(),
			}, func(context.Context, *struct{}) (*pingOutput, error) {
				out := &pingOutput{}
				out.Body.OK = true
				return out, nil
			})

			resp := api.Get("/ping", tt.headers...)
			assert.Equal(t, http.StatusOK, resp.Code)

			line := buf.String()
			assert.Contains(t, line, `"component":"http_logger"`)
			for _, w := range tt.want {
				assert.Contains(t, line, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, line, a)
			}
		})
	}
}
