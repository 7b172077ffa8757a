package socket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	backend "github.com/dmitrijs2005/drivekeeper/internal/server/services"

	_ "modernc.org/sqlite"
)

func setupListener(t *testing.T, masterKey []byte, push ...Message) (*Listener, *store.Store, *events.Bus) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, msg := range push {
			require.NoError(t, conn.WriteJSON(msg))
		}
		// hold the connection open until the test finishes
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	db, err := store.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.NewStore(store.NewSQLiteKV(db))
	bus := events.NewBus()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(logger, url, func() string { return "token" }, st, bus, masterKey)
	return l, st, bus
}

func sealedItem(t *testing.T, masterKey []byte, uuid, name, parent string) *api.RemoteItem {
	t.Helper()
	meta, nonce, err := cryptox.EncryptMetadata(&models.FileMetadata{Name: name}, masterKey)
	require.NoError(t, err)
	return &api.RemoteItem{UUID: uuid, Type: "file", Parent: parent, Metadata: meta, Nonce: nonce}
}

func TestListener_AppliesNewItemEvent(t *testing.T) {
	masterKey := cryptox.DeriveMasterKey([]byte("password"), cryptox.GenerateSalt(16))
	remote := sealedItem(t, masterKey, "f1", "pushed.txt", common.ParentBase)

	l, st, bus := setupListener(t, masterKey, Message{Event: EventNew, UUID: "f1", Item: remote})

	ch, cancel := bus.Subscribe(events.TopicItemUploaded)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = l.Run(ctx) }()

	select {
	case ev := <-ch:
		assert.Equal(t, "f1", ev.UUID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	items, err := st.Items(context.Background(), common.ParentBase)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "pushed.txt", items[0].Name)
}

func TestListener_AppliesMoveEvent(t *testing.T) {
	masterKey := cryptox.DeriveMasterKey([]byte("password"), cryptox.GenerateSalt(16))
	remote := sealedItem(t, masterKey, "f1", "moved.txt", common.ParentBase)

	moved := *remote
	moved.Parent = "d1"
	l, st, bus := setupListener(t, masterKey,
		Message{Event: EventNew, UUID: "f1", Item: remote},
		Message{Event: EventMove, UUID: "f1", Parent: common.ParentBase, Dest: "d1", Item: &moved},
	)

	ch, cancel := bus.Subscribe(events.TopicItemMoved)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = l.Run(ctx) }()

	select {
	case ev := <-ch:
		assert.Equal(t, "d1", ev.Parent)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	base, err := st.Items(context.Background(), common.ParentBase)
	require.NoError(t, err)
	assert.Empty(t, base)
	dest, err := st.Items(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, dest, 1)
	assert.Equal(t, "d1", dest[0].Parent)
}

// setupRawListener pushes pre-marshaled frames, so tests can feed the exact
// bytes another component produced.
func setupRawListener(t *testing.T, masterKey []byte, frames ...[]byte) (*Listener, *store.Store, *events.Bus) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
		}
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	db, err := store.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.NewStore(store.NewSQLiteKV(db))
	bus := events.NewBus()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(logger, url, func() string { return "token" }, st, bus, masterKey)
	return l, st, bus
}

// The listener must apply the payloads the backend actually emits, record
// included, for every mutation event.
func TestListener_AppliesBackendPayloads(t *testing.T) {
	masterKey := cryptox.DeriveMasterKey([]byte("password"), cryptox.GenerateSalt(16))
	meta, nonce, err := cryptox.EncryptMetadata(&models.FileMetadata{Name: "synced.txt"}, masterKey)
	require.NoError(t, err)

	wire := func(parent string, favorited bool) *backend.WireItem {
		return &backend.WireItem{UUID: "f1", Type: "file", Parent: parent, Metadata: meta, Nonce: nonce, Favorited: favorited}
	}
	marshal := func(ev *backend.ItemEvent) []byte {
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		return data
	}

	frames := [][]byte{
		marshal(&backend.ItemEvent{Event: backend.EventNew, UUID: "f1", Item: wire(common.ParentBase, false)}),
		marshal(&backend.ItemEvent{Event: backend.EventTrash, UUID: "f1", Parent: common.ParentBase, Dest: common.ParentTrash, Item: wire(common.ParentTrash, false)}),
		marshal(&backend.ItemEvent{Event: backend.EventRestore, UUID: "f1", Parent: common.ParentTrash, Dest: common.ParentBase, Item: wire(common.ParentBase, false)}),
		marshal(&backend.ItemEvent{Event: backend.EventFavorite, UUID: "f1", Parent: common.ParentBase, Value: true, Item: wire(common.ParentBase, true)}),
	}

	l, st, bus := setupRawListener(t, masterKey, frames...)

	ch, cancel := bus.Subscribe(events.TopicItemFavorite)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = l.Run(ctx) }()

	select {
	case ev := <-ch:
		assert.Equal(t, "f1", ev.UUID)
	case <-time.After(2 * time.Second):
		t.Fatal("no favorite event received")
	}

	trash, err := st.Items(context.Background(), common.ParentTrash)
	require.NoError(t, err)
	assert.Empty(t, trash)

	base, err := st.Items(context.Background(), common.ParentBase)
	require.NoError(t, err)
	require.Len(t, base, 1)
	assert.Equal(t, "synced.txt", base[0].Name)
	assert.True(t, base[0].Favorited)
}

func TestListener_IgnoresUnknownEvents(t *testing.T) {
	masterKey := cryptox.DeriveMasterKey([]byte("password"), cryptox.GenerateSalt(16))
	remote := sealedItem(t, masterKey, "f1", "a.txt", common.ParentBase)

	l, st, _ := setupListener(t, masterKey,
		Message{Event: "unknown-things"},
		Message{Event: EventNew, UUID: "f1", Item: remote},
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = l.Run(ctx) }()

	require.Eventually(t, func() bool {
		items, err := st.Items(context.Background(), common.ParentBase)
		return err == nil && len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
