package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	syncdomain "recipesync/internal/domain/sync"
	"recipesync/internal/domain/user"
)

var (
	ErrUnauthorized = errors.New("not logged in or session expired")
	ErrLoginTaken   = errors.New("login already taken")
)

// TokenSource источник bearer-токена
type TokenSource interface {
	Token() string
}

// StatusError ответ сервера с кодом 4xx/5xx
type StatusError struct {
	Status int
	Detail string
	body   []byte
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// problem тело ошибки huma (application/problem+json)
type problem struct {
	Title   string         `json:"title"`
	Detail  string         `json:"detail"`
	Current *entity.Entity `json:"current"`
}

// HTTPClient шлюз устройства к серверу аккаунта
type HTTPClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	tokens    TokenSource
	deviceID  string
	userAgent string
}

var _ syncdomain.Gateway = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration, tokens TokenSource, deviceID string, log *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:       log.With("component", "http_client"),
		baseURL:   baseURL,
		tokens:    tokens,
		deviceID:  deviceID,
		userAgent: "RecipeSync-Agent/1.0",
	}
}

// HealthCheck проверяет доступность сервера
func (h *HTTPClient) HealthCheck(ctx context.Context) error {
	return h.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

func (h *HTTPClient) Ping(ctx context.Context) (time.Time, error) {
	var resp struct {
		ServerTime time.Time `json:"server_time"`
	}
	if err := h.do(ctx, http.MethodGet, "/api/v1/ping", nil, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.ServerTime, nil
}

func (h *HTTPClient) Touch(ctx context.Context, req device.TouchRequest) (*device.DeviceInfo, error) {
	var d device.DeviceInfo
	if err := h.do(ctx, http.MethodPost, "/api/v1/devices/touch", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *HTTPClient) Fetch(ctx context.Context, key entity.Key) (*entity.Entity, error) {
	var e entity.Entity
	path := "/api/v1/entities/" + url.PathEscape(string(key.Type)) + "/" + url.PathEscape(key.ID)
	err := h.do(ctx, http.MethodGet, path, nil, &e)
	if isStatus(err, http.StatusNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (h *HTTPClient) Push(ctx context.Context, req entity.PushRequest) (*entity.PushResult, error) {
	var res entity.PushResult
	err := h.do(ctx, http.MethodPost, "/api/v1/entities/push", req, &res)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusConflict {
		var p problem
		if jerr := json.Unmarshal(se.body, &p); jerr != nil || p.Current == nil {
			return nil, fmt.Errorf("%w: conflict response without current entity", syncdomain.ErrServer)
		}
		return nil, &entity.StaleError{Current: p.Current}
	}
	if isStatus(err, http.StatusNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *HTTPClient) Changes(ctx context.Context, cur entity.Cursor, limit int) ([]*entity.Entity, error) {
	q := url.Values{}
	if !cur.Since.IsZero() {
		q.Set("since", cur.Since.UTC().Format(time.RFC3339Nano))
	}
	if cur.After != (entity.Key{}) {
		q.Set("after", cur.After.String())
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var resp struct {
		Entities []*entity.Entity `json:"entities"`
	}
	if err := h.do(ctx, http.MethodGet, "/api/v1/entities/changes?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

func (h *HTTPClient) Snapshot(ctx context.Context) ([]*entity.Entity, error) {
	var resp struct {
		Entities []*entity.Entity `json:"entities"`
	}
	if err := h.do(ctx, http.MethodGet, "/api/v1/entities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Register создает учетную запись
func (h *HTTPClient) Register(ctx context.Context, creds user.Credentials) error {
	err := h.do(ctx, http.MethodPost, "/api/v1/user/register", creds, nil)
	if isStatus(err, http.StatusConflict) {
		return ErrLoginTaken
	}
	return err
}

// Login возвращает bearer-токен
func (h *HTTPClient) Login(ctx context.Context, creds user.Credentials) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := h.do(ctx, http.MethodPost, "/api/v1/user/login", creds, &resp)
	if isStatus(err, http.StatusUnauthorized) {
		return "", user.ErrInvalidAuth
	}
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (h *HTTPClient) Devices(ctx context.Context) ([]*device.DeviceInfo, error) {
	var resp struct {
		Devices []*device.DeviceInfo `json:"devices"`
	}
	if err := h.do(ctx, http.MethodGet, "/api/v1/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func (h *HTTPClient) RenameDevice(ctx context.Context, id, name string) (*device.DeviceInfo, error) {
	var d device.DeviceInfo
	body := map[string]string{"name": name}
	err := h.do(ctx, http.MethodPut, "/api/v1/devices/"+url.PathEscape(id), body, &d)
	if isStatus(err, http.StatusNotFound) {
		return nil, device.ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *HTTPClient) RevokeDevice(ctx context.Context, id string) error {
	err := h.do(ctx, http.MethodDelete, "/api/v1/devices/"+url.PathEscape(id), nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return device.ErrDeviceNotFound
	}
	return err
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.deviceID != "" {
		req.Header.Set("X-Device-ID", h.deviceID)
	}
	if h.tokens != nil {
		if token := h.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	h.log.Debug("Отправка запроса", "method", method, "path", path)

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", syncdomain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", syncdomain.ErrNetwork, err)
	}

	h.log.Debug("Получен ответ", "status", resp.StatusCode, "path", path)

	if resp.StatusCode >= http.StatusBadRequest {
		return statusErr(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", syncdomain.ErrServer, err)
		}
	}
	return nil
}

// statusErr относит ответ к категории ошибок синхронизации. Сам StatusError
// остается в цепочке, чтобы вызывающий код мог разобрать тело.
func statusErr(status int, body []byte) error {
	se := &StatusError{Status: status, body: body}
	var p problem
	if err := json.Unmarshal(body, &p); err == nil {
		se.Detail = p.Detail
		if se.Detail == "" {
			se.Detail = p.Title
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, se)
	case status == http.StatusGone:
		return fmt.Errorf("%w: %w", device.ErrDeviceRevoked, se)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", syncdomain.ErrNetwork, se)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", syncdomain.ErrServer, se)
	case status == http.StatusConflict, status == http.StatusNotFound:
		return se
	}
	return fmt.Errorf("%w: %w", syncdomain.ErrValidation, se)
}

func isStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
