package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

// HTTPClient talks JSON over HTTP to the DriveKeeper backend. It injects the
// access token on every call and transparently refreshes an expired token
// pair once per request, the way the gRPC interceptor used to.
type HTTPClient struct {
	baseURL string
	hc      *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewHTTPClient creates a client for the given base URL, e.g.
// "http://127.0.0.1:8080".
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

// SetTokens seeds the token pair, e.g. from a saved session.
func (c *HTTPClient) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

// AccessToken returns the current access token. The socket listener reads it
// at every reconnect.
func (c *HTTPClient) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

type errorBody struct {
	Error string `json:"error"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	err := c.doOnce(ctx, method, path, in, out)
	if err == nil {
		return nil
	}

	// An expired access token is worth one refresh attempt; everything else
	// propagates as is.
	if !isTokenExpired(err) {
		return err
	}
	if refreshErr := c.refresh(ctx); refreshErr != nil {
		return err
	}
	return c.doOnce(ctx, method, path, in, out)
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.accessToken)
	}
	c.mu.Unlock()

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) refresh(ctx context.Context) error {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()
	if rt == "" {
		return common.ErrRefreshTokenExpired
	}

	var pair tokenPair
	if err := c.doOnce(ctx, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refreshToken": rt}, &pair); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	c.mu.Unlock()
	return nil
}

func isTokenExpired(err error) bool {
	return err != nil && strings.Contains(err.Error(), common.ErrTokenExpired.Error())
}

func mapStatusError(resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
	case http.StatusPaymentRequired, http.StatusInsufficientStorage:
		return fmt.Errorf("%w: %s", ErrStorageFull, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, msg)
	}
}

func (c *HTTPClient) Register(ctx context.Context, username string, salt, verifier []byte) error {
	req := map[string]any{"username": username, "salt": salt, "verifier": verifier}
	return c.do(ctx, http.MethodPost, "/api/auth/register", req, nil)
}

func (c *HTTPClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	var resp struct {
		Salt []byte `json:"salt"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/salt", map[string]string{"username": username}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte) error {
	var pair tokenPair
	req := map[string]any{"username": username, "verifier": verifier}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &pair); err != nil {
		return err
	}
	c.SetTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

func (c *HTTPClient) GetQuota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.do(ctx, http.MethodGet, "/api/quota", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, req *CreateFolderRequest) error {
	return c.do(ctx, http.MethodPost, "/api/folders", req, nil)
}

func (c *HTTPClient) FolderExists(ctx context.Context, parent, nameHash string) (bool, string, error) {
	var resp struct {
		Exists bool   `json:"exists"`
		UUID   string `json:"uuid"`
	}
	req := map[string]string{"parent": parent, "nameHash": nameHash}
	if err := c.do(ctx, http.MethodPost, "/api/folders/exists", req, &resp); err != nil {
		return false, "", err
	}
	return resp.Exists, resp.UUID, nil
}

func (c *HTTPClient) ListFolder(ctx context.Context, parent string) ([]*RemoteItem, error) {
	var resp struct {
		Items []*RemoteItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/folders/"+parent+"/content", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *HTTPClient) UploadChunkURL(ctx context.Context, uuid string, index int64, parent, uploadKey string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	req := map[string]string{"parent": parent, "uploadKey": uploadKey}
	path := fmt.Sprintf("/api/uploads/%s/chunks/%d/url", uuid, index)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *HTTPClient) DownloadChunkURL(ctx context.Context, uuid string, index int64) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	path := fmt.Sprintf("/api/files/%s/chunks/%d/url", uuid, index)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// UploadChunk PUTs one sealed chunk to a presigned URL. The URL already
// carries its authorization, so no token header is attached.
func (c *HTTPClient) UploadChunk(ctx context.Context, url string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chunk upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

// DownloadChunk GETs one sealed chunk from a presigned URL.
func (c *HTTPClient) DownloadChunk(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chunk download failed: %s; body: %s", resp.Status, string(b))
	}
	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) MarkUploadDone(ctx context.Context, req *MarkUploadDoneRequest) (*MarkUploadDoneResult, error) {
	var res MarkUploadDoneResult
	path := fmt.Sprintf("/api/uploads/%s/done", req.UUID)
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) MoveFile(ctx context.Context, uuid, parent string) error {
	req := map[string]string{"type": "file", "parent": parent}
	return c.do(ctx, http.MethodPost, "/api/items/"+uuid+"/move", req, nil)
}

func (c *HTTPClient) MoveFolder(ctx context.Context, uuid, parent string) error {
	req := map[string]string{"type": "folder", "parent": parent}
	return c.do(ctx, http.MethodPost, "/api/items/"+uuid+"/move", req, nil)
}

func (c *HTTPClient) TrashItem(ctx context.Context, uuid, itemType string) error {
	req := map[string]string{"type": itemType}
	return c.do(ctx, http.MethodPost, "/api/items/"+uuid+"/trash", req, nil)
}

func (c *HTTPClient) RestoreItem(ctx context.Context, uuid, itemType, parent string) error {
	req := map[string]string{"type": itemType, "parent": parent}
	return c.do(ctx, http.MethodPost, "/api/items/"+uuid+"/restore", req, nil)
}

func (c *HTTPClient) FavoriteItem(ctx context.Context, uuid, itemType string, value bool) error {
	req := map[string]any{"type": itemType, "value": value}
	return c.do(ctx, http.MethodPost, "/api/items/"+uuid+"/favorite", req, nil)
}

func (c *HTTPClient) ChangeColor(ctx context.Context, uuid, color string) error {
	req := map[string]string{"color": color}
	return c.do(ctx, http.MethodPost, "/api/items/"+uuid+"/color", req, nil)
}
