package services

// Item event names pushed to other sessions of the same account.
const (
	EventNew      = "new"
	EventMove     = "move"
	EventRename   = "rename"
	EventTrash    = "trash"
	EventRestore  = "restore"
	EventColor    = "color"
	EventFavorite = "favorite"
)

// WireItem is an item as it crosses the wire: metadata still sealed.
type WireItem struct {
	UUID      string `json:"uuid"`
	Type      string `json:"type"`
	Parent    string `json:"parent"`
	Metadata  []byte `json:"metadata"`
	Nonce     []byte `json:"nonce"`
	NameHash  string `json:"nameHash"`
	Size      int64  `json:"size"`
	Chunks    int64  `json:"chunks"`
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	Color     string `json:"color,omitempty"`
	Favorited bool   `json:"favorited"`
	Timestamp int64  `json:"timestamp"`
}

// ItemEvent is one pushed item notification. Item is set for events that
// carry a new or changed record.
type ItemEvent struct {
	Event  string    `json:"event"`
	UUID   string    `json:"uuid"`
	Parent string    `json:"parent,omitempty"`
	Dest   string    `json:"dest,omitempty"`
	Color  string    `json:"color,omitempty"`
	Value  bool      `json:"value,omitempty"`
	Item   *WireItem `json:"item,omitempty"`
}

// Notifier fans an item event out to the account's other live sessions.
// Implementations must not block.
type Notifier interface {
	Notify(userID string, event *ItemEvent)
}

// NopNotifier drops every event. Used until the websocket hub is attached
// and in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(string, *ItemEvent) {}
