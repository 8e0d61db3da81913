package sse

import (
	"encoding/json"
	"fmt"

	"github.com/starford/linkshelf/internal/models"
)

// OldRecord identifies the row a delete removed.
type OldRecord struct {
	ID int64 `json:"id"`
}

// Message is the data payload of one change event.
type Message struct {
	EventType string           `json:"eventType"`
	New       *models.Bookmark `json:"new,omitempty"`
	Old       *OldRecord       `json:"old,omitempty"`
}

// NewMessage converts a changelog entry into its wire form.
func NewMessage(c models.Change) Message {
	m := Message{EventType: c.Kind.EventType()}
	if c.Kind == models.ChangeDeleted {
		m.Old = &OldRecord{ID: c.BookmarkID}
	} else {
		m.New = c.Record
	}
	return m
}

// Change converts a decoded message back into a change notification.
func (m Message) Change() (models.Change, error) {
	kind, ok := models.KindFromEventType(m.EventType)
	if !ok {
		return models.Change{}, fmt.Errorf("sse: unknown event type %q", m.EventType)
	}
	c := models.Change{Kind: kind}
	switch kind {
	case models.ChangeDeleted:
		if m.Old == nil {
			return models.Change{}, fmt.Errorf("sse: delete without old record")
		}
		c.BookmarkID = m.Old.ID
	default:
		if m.New == nil {
			return models.Change{}, fmt.Errorf("sse: %s without new record", m.EventType)
		}
		c.Record = m.New
		c.BookmarkID = m.New.ID
		c.OwnerID = m.New.OwnerID
	}
	return c, nil
}

// Frame encodes c as a complete SSE frame.
func Frame(c models.Change) ([]byte, error) {
	m := NewMessage(c)
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", m.EventType, payload)), nil
}
