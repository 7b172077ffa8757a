package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/dmitrijs2005/drivekeeper/internal/server/auth"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

var testSecret = []byte("test-secret")

type fakeUsers struct {
	register func(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	login    func(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error)
}

func (f *fakeUsers) Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error) {
	if f.register != nil {
		return f.register(ctx, username, salt, verifier)
	}
	return &models.User{ID: "u1", UserName: username}, nil
}

func (f *fakeUsers) GetSalt(ctx context.Context, username string) ([]byte, error) {
	return []byte("salt"), nil
}

func (f *fakeUsers) Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error) {
	if f.login != nil {
		return f.login(ctx, username, verifier)
	}
	return &services.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeUsers) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	return &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
}

type fakeItems struct {
	quota          func(ctx context.Context, userID string) (int64, int64, error)
	uploadChunkURL func(ctx context.Context, userID, uuid string, index int64, parent, uploadKey string) (string, error)
	move           func(ctx context.Context, userID, uuid, parent string) error
}

func (f *fakeItems) Quota(ctx context.Context, userID string) (int64, int64, error) {
	if f.quota != nil {
		return f.quota(ctx, userID)
	}
	return 0, 1 << 30, nil
}

func (f *fakeItems) CreateFolder(ctx context.Context, userID string, item *models.Item) error {
	return nil
}

func (f *fakeItems) FolderExists(ctx context.Context, userID, parent, nameHash string) (bool, string, error) {
	return false, "", nil
}

func (f *fakeItems) ListFolder(ctx context.Context, userID, parent string) ([]*models.Item, error) {
	return []*models.Item{{UUID: "i1", Type: common.ItemTypeFolder, Parent: parent}}, nil
}

func (f *fakeItems) UploadChunkURL(ctx context.Context, userID, uuid string, index int64, parent, uploadKey string) (string, error) {
	if f.uploadChunkURL != nil {
		return f.uploadChunkURL(ctx, userID, uuid, index, parent, uploadKey)
	}
	return "https://s3.test/put", nil
}

func (f *fakeItems) DownloadChunkURL(ctx context.Context, userID, uuid string, index int64) (string, error) {
	return "https://s3.test/get", nil
}

func (f *fakeItems) FinishUpload(ctx context.Context, userID string, req *services.FinishUploadRequest) (*models.Item, error) {
	return &models.Item{UUID: req.UUID, Chunks: 3, Bucket: "b", Region: "r"}, nil
}

func (f *fakeItems) Move(ctx context.Context, userID, uuid, parent string) error {
	if f.move != nil {
		return f.move(ctx, userID, uuid, parent)
	}
	return nil
}

func (f *fakeItems) Trash(ctx context.Context, userID, uuid string) error { return nil }

func (f *fakeItems) Restore(ctx context.Context, userID, uuid, parent string) error { return nil }

func (f *fakeItems) Favorite(ctx context.Context, userID, uuid string, value bool) error { return nil }

func (f *fakeItems) ChangeColor(ctx context.Context, userID, uuid, color string) error { return nil }

func setupServer(t *testing.T, users *fakeUsers, items *fakeItems) (*Server, *httptest.Server) {
	t.Helper()
	if users == nil {
		users = &fakeUsers{}
	}
	if items == nil {
		items = &fakeItems{}
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := NewServer(":0", logger, users, items, testSecret)

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, testSecret, time.Minute)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	_, ts := setupServer(t, nil, nil)

	t.Run("missing token", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/quota", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/quota", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token names the cause", func(t *testing.T) {
		stale, err := auth.GenerateToken("u1", testSecret, -time.Minute)
		require.NoError(t, err)

		resp := doJSON(t, http.MethodGet, ts.URL+"/api/quota", stale, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var eb errorBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))
		assert.Contains(t, eb.Error, common.ErrTokenExpired.Error())
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/quota", accessToken(t, "u1"), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHandleQuota_ScopedToTokenUser(t *testing.T) {
	var gotUser string
	items := &fakeItems{
		quota: func(ctx context.Context, userID string) (int64, int64, error) {
			gotUser = userID
			return 42, 100, nil
		},
	}
	_, ts := setupServer(t, nil, items)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/quota", accessToken(t, "user-7"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-7", gotUser)

	var q struct {
		Used int64 `json:"used"`
		Max  int64 `json:"max"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	assert.Equal(t, int64(42), q.Used)
	assert.Equal(t, int64(100), q.Max)
}

func TestErrorStatusMapping(t *testing.T) {
	users := &fakeUsers{
		register: func(ctx context.Context, username string, salt, verifier []byte) (*models.User, error) {
			return nil, common.ErrAlreadyExists
		},
	}
	items := &fakeItems{
		uploadChunkURL: func(ctx context.Context, userID, uuid string, index int64, parent, uploadKey string) (string, error) {
			return "", common.ErrStorageFull
		},
		move: func(ctx context.Context, userID, uuid, parent string) error {
			return common.ErrNotFound
		},
	}
	_, ts := setupServer(t, users, items)
	token := accessToken(t, "u1")

	t.Run("conflict", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "",
			map[string]any{"username": "alice"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("storage full", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/uploads/up1/chunks/0/url", token,
			map[string]string{"parent": "base", "uploadKey": "k"})
		assert.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/items/missing/move", token,
			map[string]string{"parent": "base"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad chunk index", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/uploads/up1/chunks/x/url", token,
			map[string]string{"parent": "base", "uploadKey": "k"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleListFolder(t *testing.T) {
	_, ts := setupServer(t, nil, nil)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/folders/base/content", accessToken(t, "u1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Items []*services.WireItem `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "i1", body.Items[0].UUID)
	assert.Equal(t, "base", body.Items[0].Parent)
}

func TestHandleUploadDone_ReturnsServerValues(t *testing.T) {
	_, ts := setupServer(t, nil, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/uploads/up1/done", accessToken(t, "u1"),
		map[string]any{"chunks": 99, "uploadKey": "k"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Chunks int64  `json:"chunks"`
		Bucket string `json:"bucket"`
		Region string `json:"region"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(3), body.Chunks)
	assert.Equal(t, "b", body.Bucket)
	assert.Equal(t, "r", body.Region)
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	items := &fakeItems{
		quota: func(ctx context.Context, userID string) (int64, int64, error) {
			return 0, 0, assert.AnError
		},
	}
	_, ts := setupServer(t, nil, items)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/quota", accessToken(t, "u1"), nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), assert.AnError.Error()),
		"internal error details must not leak to the client")
}
