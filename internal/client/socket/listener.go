// Package socket maintains the client's websocket channel to the server.
// Item events pushed by other sessions of the same account are applied to
// the local metadata store and republished on the event bus, so every
// session converges on the same listing without polling.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/services"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

// Message is one server-pushed item event. Item is present for events that
// carry a new or changed record; its metadata is still sealed.
type Message struct {
	Event  string          `json:"event"`
	UUID   string          `json:"uuid"`
	Parent string          `json:"parent,omitempty"`
	Dest   string          `json:"dest,omitempty"`
	Color  string          `json:"color,omitempty"`
	Value  bool            `json:"value,omitempty"`
	Item   *api.RemoteItem `json:"item,omitempty"`
}

const (
	EventNew      = "new"
	EventMove     = "move"
	EventRename   = "rename"
	EventTrash    = "trash"
	EventRestore  = "restore"
	EventColor    = "color"
	EventFavorite = "favorite"
)

// Listener owns one websocket connection and its reconnect loop.
type Listener struct {
	logger    logging.Logger
	url       string
	token     func() string
	store     *store.Store
	bus       *events.Bus
	masterKey []byte
	backoff   time.Duration
}

// NewListener builds a listener for the given ws/wss URL. token is read at
// every (re)connect so a refreshed access token is picked up.
func NewListener(logger logging.Logger, url string, token func() string, st *store.Store, bus *events.Bus, masterKey []byte) *Listener {
	return &Listener{
		logger:    logger,
		url:       url,
		token:     token,
		store:     st,
		bus:       bus,
		masterKey: masterKey,
		backoff:   2 * time.Second,
	}
}

// Run connects and processes pushed events until ctx is cancelled,
// reconnecting with a fixed backoff after any connection loss.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.runOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn(ctx, "socket disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) runOnce(ctx context.Context) error {
	header := http.Header{}
	if t := l.token(); t != "" {
		header.Set(common.AuthorizationHeaderName, "Bearer "+t)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, l.url, header)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// unblock ReadMessage on cancellation
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			l.logger.Warn(ctx, "dropping malformed socket message", "error", err)
			continue
		}
		if err := l.apply(ctx, &msg); err != nil {
			l.logger.Warn(ctx, "failed to apply socket event", "event", msg.Event, "uuid", msg.UUID, "error", err)
		}
	}
}

// apply mirrors one remote event into the local store and republishes it.
func (l *Listener) apply(ctx context.Context, msg *Message) error {
	switch msg.Event {
	case EventNew:
		item, err := l.decode(msg)
		if err != nil {
			return err
		}
		if err := l.store.AddItems(ctx, []*models.Item{item}, item.Parent); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemUploaded, UUID: item.UUID, Parent: item.Parent, Item: item})

	case EventMove:
		item, err := l.decode(msg)
		if err != nil {
			return err
		}
		if err := l.store.RemoveItems(ctx, []*models.Item{item}, msg.Parent); err != nil {
			return err
		}
		moved := *item
		moved.Parent = msg.Dest
		if err := l.store.AddItems(ctx, []*models.Item{&moved}, msg.Dest); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemMoved, UUID: moved.UUID, Parent: msg.Dest, Item: &moved})

	case EventRename:
		item, err := l.decode(msg)
		if err != nil {
			return err
		}
		if err := l.store.ChangeItem(ctx, msg.UUID, msg.Parent, "name", item.Name); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemCreated, UUID: msg.UUID, Parent: msg.Parent, Item: item})

	case EventTrash:
		item, err := l.decode(msg)
		if err != nil {
			return err
		}
		if err := l.store.RemoveItems(ctx, []*models.Item{item}, msg.Parent); err != nil {
			return err
		}
		trashed := *item
		trashed.Parent = common.ParentTrash
		if err := l.store.AddItems(ctx, []*models.Item{&trashed}, common.ParentTrash); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemTrashed, UUID: msg.UUID, Item: &trashed})

	case EventRestore:
		item, err := l.decode(msg)
		if err != nil {
			return err
		}
		if err := l.store.RemoveItems(ctx, []*models.Item{item}, common.ParentTrash); err != nil {
			return err
		}
		if err := l.store.AddItems(ctx, []*models.Item{item}, item.Parent); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemRestored, UUID: item.UUID, Parent: item.Parent, Item: item})

	case EventColor:
		if err := l.store.ChangeItem(ctx, msg.UUID, msg.Parent, "color", msg.Color); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemColor, UUID: msg.UUID, Parent: msg.Parent})

	case EventFavorite:
		item, err := l.decode(msg)
		if err != nil {
			return err
		}
		item.Favorited = msg.Value
		if err := l.store.ChangeItems(ctx, []*models.Item{item}, msg.Parent); err != nil {
			return err
		}
		l.bus.Publish(events.Event{Topic: events.TopicItemFavorite, UUID: item.UUID, Parent: msg.Parent, Item: item})

	default:
		l.logger.Debug(ctx, "ignoring unknown socket event", "event", msg.Event)
	}
	return nil
}

func (l *Listener) decode(msg *Message) (*models.Item, error) {
	if msg.Item == nil {
		return nil, errors.New("message carries no item")
	}
	return services.DecodeRemoteItem(msg.Item, l.masterKey)
}
