// Package client wraps the Grafana HTTP API of a single instance: folder,
// dashboard and datasource reads plus idempotent upsert writes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/tidwall/gjson"
)

const (
	retryAttempts = 3
	retryDelay    = 250 * time.Millisecond
	maxRetryDelay = 2 * time.Second
)

// Client talks to one Grafana instance using a service-account bearer token.
type Client struct {
	host   string
	apiKey string
	http   *http.Client
}

// New builds a client for the given instance. A non-positive timeout falls
// back to 5s per request.
func New(cred Credential, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		host:   strings.TrimRight(cred.Host, "/"),
		apiKey: cred.APIKey,
		http:   &http.Client{Timeout: timeout},
	}
}

// Host returns the instance base URL.
func (c *Client) Host() string { return c.host }

// do performs one authenticated request, retrying transport failures with
// backoff. Auth and remote errors are returned as-is on the first attempt.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = data
	}

	var out []byte
	attempt := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransportError{Err: err}
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &AuthError{Status: resp.StatusCode}
		case resp.StatusCode >= 400:
			return &RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}

		out = data
		return nil
	}

	err := retry.Call(retry.CallArgs{
		Func: attempt,
		IsFatalError: func(err error) bool {
			var te *TransportError
			return !errors.As(err, &te)
		},
		Attempts:    retryAttempts,
		Delay:       retryDelay,
		MaxDelay:    maxRetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clock.WallClock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListFolders returns folder summaries from the search API. ParentUID is not
// populated here; use GetFolder for the full record.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/search?type=dash-folder", nil)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	var folders []Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, fmt.Errorf("parsing folder list: %w", err)
	}
	return folders, nil
}

// GetFolder fetches one folder by uid, including its parent reference.
func (c *Client) GetFolder(ctx context.Context, uid string) (Folder, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/folders/"+uid, nil)
	if err != nil {
		return Folder{}, err
	}
	var f Folder
	if err := json.Unmarshal(data, &f); err != nil {
		return Folder{}, fmt.Errorf("parsing folder %s: %w", uid, err)
	}
	return f, nil
}

// ListDashboards returns dashboard summaries from the search API. The opaque
// panel JSON is only available through GetDashboardDetail.
func (c *Client) ListDashboards(ctx context.Context) ([]Dashboard, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/search?type=dash-db", nil)
	if err != nil {
		return nil, fmt.Errorf("listing dashboards: %w", err)
	}
	var dashboards []Dashboard
	if err := json.Unmarshal(data, &dashboards); err != nil {
		return nil, fmt.Errorf("parsing dashboard list: %w", err)
	}
	return dashboards, nil
}

// GetDashboardDetail fetches the full dashboard payload plus the folder
// reference from its meta block.
func (c *Client) GetDashboardDetail(ctx context.Context, uid string) (Dashboard, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/dashboards/uid/"+uid, nil)
	if err != nil {
		return Dashboard{}, err
	}

	var detail struct {
		Meta struct {
			FolderUID string `json:"folderUid"`
		} `json:"meta"`
		Dashboard json.RawMessage `json:"dashboard"`
	}
	if err := json.Unmarshal(data, &detail); err != nil {
		return Dashboard{}, fmt.Errorf("parsing dashboard %s: %w", uid, err)
	}

	return Dashboard{
		UID:       uid,
		Title:     gjson.GetBytes(detail.Dashboard, "title").String(),
		FolderUID: detail.Meta.FolderUID,
		ID:        gjson.GetBytes(detail.Dashboard, "id").Int(),
		Version:   gjson.GetBytes(detail.Dashboard, "version").Int(),
		Data:      detail.Dashboard,
	}, nil
}

// ListDatasources returns all datasources. Grafana never echoes
// secureJsonData, so those fields arrive empty.
func (c *Client) ListDatasources(ctx context.Context) ([]Datasource, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/datasources", nil)
	if err != nil {
		return nil, fmt.Errorf("listing datasources: %w", err)
	}
	var datasources []Datasource
	if err := json.Unmarshal(data, &datasources); err != nil {
		return nil, fmt.Errorf("parsing datasource list: %w", err)
	}
	return datasources, nil
}

// UpsertFolder creates or updates a folder keyed by uid. The returned bool is
// true when the folder was created rather than updated.
func (c *Client) UpsertFolder(ctx context.Context, f Folder) (Folder, bool, error) {
	_, err := c.GetFolder(ctx, f.UID)
	var data []byte
	var created bool
	switch {
	case err == nil:
		body := map[string]any{
			"title":     f.Title,
			"parentUid": f.ParentUID,
			"overwrite": true,
		}
		data, err = c.do(ctx, http.MethodPut, "/api/folders/"+f.UID, body)
	case NotFound(err):
		created = true
		body := map[string]any{
			"uid":   f.UID,
			"title": f.Title,
		}
		if f.ParentUID != "" {
			body["parentUid"] = f.ParentUID
		}
		data, err = c.do(ctx, http.MethodPost, "/api/folders", body)
	default:
		return Folder{}, false, err
	}
	if err != nil {
		return Folder{}, false, err
	}

	var out Folder
	if err := json.Unmarshal(data, &out); err != nil {
		return Folder{}, false, fmt.Errorf("parsing folder %s: %w", f.UID, err)
	}
	return out, created, nil
}

// UpsertDashboard writes a dashboard through the db endpoint, which is
// natively create-or-update by uid. The probe beforehand only decides whether
// the write gets reported as a create or an update.
func (c *Client) UpsertDashboard(ctx context.Context, d Dashboard) (Dashboard, bool, error) {
	if len(d.Data) == 0 {
		return Dashboard{}, false, fmt.Errorf("dashboard %s has no payload", d.UID)
	}

	created := false
	if _, err := c.GetDashboardDetail(ctx, d.UID); err != nil {
		if !NotFound(err) {
			return Dashboard{}, false, err
		}
		created = true
	}

	payload := map[string]any{
		"dashboard": json.RawMessage(d.Data),
		"overwrite": true,
	}
	if d.FolderUID != "" {
		payload["folderUid"] = d.FolderUID
	}
	data, err := c.do(ctx, http.MethodPost, "/api/dashboards/db", payload)
	if err != nil {
		return Dashboard{}, false, err
	}

	out := d
	if uid := gjson.GetBytes(data, "uid").String(); uid != "" {
		out.UID = uid
	}
	return out, created, nil
}

// UpsertDatasource creates or updates a datasource, matching an existing one
// by uid first and name second. Updates go through the numeric id the
// destination assigned.
func (c *Client) UpsertDatasource(ctx context.Context, ds Datasource) (Datasource, bool, error) {
	existing, err := c.ListDatasources(ctx)
	if err != nil {
		return Datasource{}, false, err
	}

	var match *Datasource
	for i := range existing {
		if existing[i].UID == ds.UID {
			match = &existing[i]
			break
		}
	}
	if match == nil {
		for i := range existing {
			if existing[i].Name == ds.Name {
				match = &existing[i]
				break
			}
		}
	}

	var data []byte
	created := match == nil
	if match != nil {
		ds.ID = match.ID
		data, err = c.do(ctx, http.MethodPut, fmt.Sprintf("/api/datasources/%d", match.ID), ds)
	} else {
		data, err = c.do(ctx, http.MethodPost, "/api/datasources", ds)
	}
	if err != nil {
		return Datasource{}, false, err
	}

	var resp struct {
		Datasource *Datasource `json:"datasource"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.Datasource == nil {
		return ds, created, nil
	}
	return *resp.Datasource, created, nil
}
