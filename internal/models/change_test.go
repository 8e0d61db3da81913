package models

import "testing"

func TestEventTypeRoundTrip(t *testing.T) {
	for _, k := range []ChangeKind{ChangeCreated, ChangeUpdated, ChangeDeleted} {
		got, ok := KindFromEventType(k.EventType())
		if !ok || got != k {
			t.Errorf("round trip %q: got %q ok=%v", k, got, ok)
		}
	}
}

func TestKindFromEventType_UpperCase(t *testing.T) {
	got, ok := KindFromEventType("DELETE")
	if !ok || got != ChangeDeleted {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestKindFromEventType_Unknown(t *testing.T) {
	if _, ok := KindFromEventType("truncate"); ok {
		t.Fatal("unknown event type accepted")
	}
	if ChangeKind("bogus").EventType() != "" {
		t.Fatal("unknown kind should have empty event type")
	}
}
