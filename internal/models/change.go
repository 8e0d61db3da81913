package models

import "time"

// ChangeKind tags a change notification.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// EventType is the wire name used on the change feed for a kind.
func (k ChangeKind) EventType() string {
	switch k {
	case ChangeCreated:
		return "insert"
	case ChangeUpdated:
		return "update"
	case ChangeDeleted:
		return "delete"
	}
	return ""
}

// KindFromEventType is the inverse of EventType. ok is false for unknown names.
func KindFromEventType(ev string) (ChangeKind, bool) {
	switch ev {
	case "insert", "INSERT":
		return ChangeCreated, true
	case "update", "UPDATE":
		return ChangeUpdated, true
	case "delete", "DELETE":
		return ChangeDeleted, true
	}
	return "", false
}

// Change describes one remote data change on the bookmarks table.
//
// Record is set for created and updated; for deleted only BookmarkID is meaningful.
type Change struct {
	Seq        int64
	Kind       ChangeKind
	BookmarkID int64
	OwnerID    string
	Record     *Bookmark
	ChangedAt  time.Time
}
