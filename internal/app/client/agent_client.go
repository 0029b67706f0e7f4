package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/backups"
	"recipesync/internal/app/client/api/http/conflicts"
	"recipesync/internal/app/client/api/http/operations"
	"recipesync/internal/app/client/api/http/restores"
	syncAPI "recipesync/internal/app/client/api/http/sync"
	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/domain/restore"
	"recipesync/internal/domain/settings"
	syncdomain "recipesync/internal/domain/sync"
)

// AgentClient клиент локального API агента для командной строки.
// Маршруты устройств совпадают с серверными, поэтому они наследуются от HTTPClient.
type AgentClient struct {
	*HTTPClient
}

func NewAgentClient(baseURL string, timeout time.Duration, log *slog.Logger) *AgentClient {
	return &AgentClient{HTTPClient: NewHTTPClient(baseURL, timeout, nil, "", log)}
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (a *AgentClient) Status(ctx context.Context) (*syncdomain.Status, error) {
	var st syncdomain.Status
	if err := a.do(ctx, http.MethodGet, "/api/v1/sync/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (a *AgentClient) Sync(ctx context.Context, req syncAPI.SyncRequest) (*syncAPI.SyncResponse, error) {
	var resp syncAPI.SyncResponse
	if err := a.do(ctx, http.MethodPost, "/api/v1/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AgentClient) SyncEntity(ctx context.Context, key entity.Key) (*syncdomain.CycleResult, error) {
	var res syncdomain.CycleResult
	path := fmt.Sprintf("/api/v1/sync/entity/%s/%s", key.Type, url.PathEscape(key.ID))
	if err := a.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *AgentClient) Pause(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/v1/sync/pause", nil, nil)
}

func (a *AgentClient) Resume(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/v1/sync/resume", nil, nil)
}

func (a *AgentClient) Reset(ctx context.Context, confirm bool) error {
	q := url.Values{"confirm": {strconv.FormatBool(confirm)}}
	return a.do(ctx, http.MethodPost, withQuery("/api/v1/sync/reset", q), nil, nil)
}

func (a *AgentClient) Operations(ctx context.Context, page, limit int, status oplog.Status) (*operations.OperationsResponse, error) {
	q := pageQuery(page, limit)
	if status != "" {
		q.Set("status", string(status))
	}
	var resp operations.OperationsResponse
	if err := a.do(ctx, http.MethodGet, withQuery("/api/v1/sync/operations", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AgentClient) Enqueue(ctx context.Context, req operations.EnqueueRequest) (*oplog.Operation, error) {
	var op oplog.Operation
	if err := a.do(ctx, http.MethodPost, "/api/v1/sync/operations", req, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func (a *AgentClient) RetryOperation(ctx context.Context, id string) (*oplog.Operation, error) {
	var op oplog.Operation
	path := "/api/v1/sync/operations/" + url.PathEscape(id) + "/retry"
	if err := a.do(ctx, http.MethodPost, path, nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func (a *AgentClient) CancelOperation(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/api/v1/sync/operations/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (a *AgentClient) Conflicts(ctx context.Context, page, limit int, onlyOpen bool) (*conflicts.ConflictsResponse, error) {
	q := pageQuery(page, limit)
	if onlyOpen {
		q.Set("open", "true")
	}
	var resp conflicts.ConflictsResponse
	if err := a.do(ctx, http.MethodGet, withQuery("/api/v1/sync/conflicts", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AgentClient) ResolveConflict(ctx context.Context, id string, req conflicts.ResolveRequest) (*conflict.Conflict, error) {
	var c conflict.Conflict
	path := "/api/v1/sync/conflicts/" + url.PathEscape(id) + "/resolve"
	if err := a.do(ctx, http.MethodPost, path, req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *AgentClient) ResolveAll(ctx context.Context, res conflict.Resolution) (*conflicts.ResolveAllResponse, error) {
	var resp conflicts.ResolveAllResponse
	body := conflicts.ResolveAllRequest{Resolution: res}
	if err := a.do(ctx, http.MethodPost, "/api/v1/sync/conflicts/resolve-all", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AgentClient) Settings(ctx context.Context) (*settings.Settings, error) {
	var s settings.Settings
	if err := a.do(ctx, http.MethodGet, "/api/v1/sync/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *AgentClient) UpdateSettings(ctx context.Context, next settings.Settings) (*settings.Settings, error) {
	var s settings.Settings
	if err := a.do(ctx, http.MethodPut, "/api/v1/sync/settings", next, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *AgentClient) Backups(ctx context.Context, page, limit int) (*backups.BackupsResponse, error) {
	var resp backups.BackupsResponse
	if err := a.do(ctx, http.MethodGet, withQuery("/api/v1/backups", pageQuery(page, limit)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AgentClient) CreateBackup(ctx context.Context, req backups.CreateRequest) (*backup.Backup, error) {
	var b backup.Backup
	if err := a.do(ctx, http.MethodPost, "/api/v1/backups", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (a *AgentClient) Backup(ctx context.Context, id string) (*backup.Backup, error) {
	var b backup.Backup
	if err := a.do(ctx, http.MethodGet, "/api/v1/backups/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (a *AgentClient) RetryBackup(ctx context.Context, id string) (*backup.Backup, error) {
	var b backup.Backup
	if err := a.do(ctx, http.MethodPost, "/api/v1/backups/"+url.PathEscape(id)+"/retry", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (a *AgentClient) DeleteBackup(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/v1/backups/"+url.PathEscape(id), nil, nil)
}

// DownloadBackup пишет артефакт в w и сверяет контрольную сумму из заголовка
func (a *AgentClient) DownloadBackup(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v1/backups/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", syncdomain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return 0, statusErr(resp.StatusCode, data)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read artifact: %v", syncdomain.ErrNetwork, err)
	}
	if want := resp.Header.Get("X-Checksum-SHA256"); want != "" && want != hex.EncodeToString(h.Sum(nil)) {
		return n, backup.ErrCorruptBackup
	}
	return n, nil
}

func (a *AgentClient) StartRestore(ctx context.Context, req restore.Request) (*restore.Restore, error) {
	var r restore.Restore
	if err := a.do(ctx, http.MethodPost, "/api/v1/restores", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (a *AgentClient) Restores(ctx context.Context) (*restores.RestoresResponse, error) {
	var resp restores.RestoresResponse
	if err := a.do(ctx, http.MethodGet, "/api/v1/restores", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AgentClient) Restore(ctx context.Context, id string) (*restore.Restore, error) {
	var r restore.Restore
	if err := a.do(ctx, http.MethodGet, "/api/v1/restores/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (a *AgentClient) CancelRestore(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/api/v1/restores/"+url.PathEscape(id)+"/cancel", nil, nil)
}
