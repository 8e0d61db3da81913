package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func created(owner string, id int64, title string) models.Change {
	return models.Change{
		Kind:       models.ChangeCreated,
		BookmarkID: id,
		OwnerID:    owner,
		Record:     &models.Bookmark{ID: id, Title: title, URL: "https://example.com", Category: "A", OwnerID: owner},
	}
}

// streamRequest builds GET /api/events as LoadSession leaves it for an authenticated caller.
func streamRequest(ctx context.Context, owner, sessionID string, expiresAt time.Time) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	ctx = auth.WithUser(ctx, &models.User{ID: owner})
	ctx = auth.WithSession(ctx, &models.Session{ID: sessionID, UserID: owner, ExpiresAt: expiresAt})
	return req.WithContext(ctx)
}

type verifierFunc func(ctx context.Context, id string) (*models.Session, error)

func (f verifierFunc) VerifySession(ctx context.Context, id string) (*models.Session, error) {
	return f(ctx, id)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("u1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	if b.OwnerClientCount("u1") != 1 || b.OwnerClientCount("u2") != 0 {
		t.Fatalf("owner counts wrong")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	b.PublishChange(created("u1", 7, "Go"))

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: insert") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"eventType":"insert"`) || !strings.Contains(s, `"title":"Go"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishScopedToOwner(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()
	mine := b.Subscribe("u1")
	defer b.Unsubscribe(mine)
	theirs := b.Subscribe("u2")
	defer b.Unsubscribe(theirs)

	b.PublishChange(created("u2", 1, "private"))
	b.PublishChange(created("u1", 2, "mine"))

	select {
	case msg := <-mine:
		if strings.Contains(string(msg), "private") {
			t.Fatalf("u1 received u2's change: %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for own change")
	}

	select {
	case msg := <-theirs:
		if !strings.Contains(string(msg), "private") {
			t.Fatalf("u2 got unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for u2 change")
	}

	select {
	case msg := <-mine:
		t.Fatalf("unexpected extra message for u1: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := streamRequest(ctx, "u1", "s1", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.OwnerClientCount("u1") != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishChange(models.Change{Kind: models.ChangeDeleted, BookmarkID: 9, OwnerID: "u1"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: delete") || !strings.Contains(body, `"old":{"id":9}`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(20*time.Millisecond, nil, logger.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := streamRequest(ctx, "u1", "s1", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestSSEHandler_RequiresUser(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	// A user without the session it authenticated with is rejected as well.
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &models.User{ID: "u1"}))
	w = httptest.NewRecorder()
	b.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRevokeSession(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()

	revoked := b.SubscribeSession("u1", "s1")
	other := b.SubscribeSession("u1", "s2")
	defer b.Unsubscribe(other)

	b.RevokeSession("s1")

	select {
	case _, ok := <-revoked:
		if ok {
			t.Fatal("expected revoked channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for revoke")
	}
	if b.OwnerClientCount("u1") != 1 {
		t.Fatalf("owner clients = %d, want 1", b.OwnerClientCount("u1"))
	}

	b.PublishChange(created("u1", 3, "after"))
	select {
	case msg := <-other:
		if !strings.Contains(string(msg), "after") {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("other session stopped receiving")
	}

	// Unsubscribing an already revoked channel is a no-op.
	b.Unsubscribe(revoked)
}

func TestSSEHandler_EndsOnRevoke(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, streamRequest(context.Background(), "u1", "s1", time.Now().Add(time.Hour)))
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.OwnerClientCount("u1") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.RevokeSession("s1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream still open after revoke")
	}
}

func TestSSEHandler_EndsWhenSessionInvalid(t *testing.T) {
	calls := make(chan string, 8)
	verify := verifierFunc(func(_ context.Context, id string) (*models.Session, error) {
		calls <- id
		return nil, fmt.Errorf("%w: session revoked", apperr.ErrUnauthenticated)
	})
	b := NewBroker(20*time.Millisecond, verify, logger.Nop())
	defer b.Close()

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, streamRequest(context.Background(), "u1", "s1", time.Now().Add(time.Hour)))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream still open after failed session check")
	}
	if id := <-calls; id != "s1" {
		t.Errorf("verified session %q, want s1", id)
	}
	if strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("heartbeat written for an invalid session: %q", w.Body.String())
	}
}

func TestSSEHandler_SessionCheckError(t *testing.T) {
	verify := verifierFunc(func(context.Context, string) (*models.Session, error) {
		return nil, errors.New("db down")
	})
	b := NewBroker(20*time.Millisecond, verify, logger.Nop())
	defer b.Close()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(httptest.NewRecorder(), streamRequest(context.Background(), "u1", "s1", time.Now().Add(time.Hour)))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream still open after session check error")
	}
}

func TestSSEHandler_EndsAtExpiry(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(httptest.NewRecorder(), streamRequest(context.Background(), "u1", "s1", time.Now().Add(30*time.Millisecond)))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream outlived its session")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	// Fill buffer and then some more should not block.
	for i := 0; i < clientBuffer+6; i++ {
		b.PublishChange(created("u1", int64(i), "x"))
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Second, nil, logger.Nop())
	ch := b.Subscribe("u1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishChange(created("u1", 1, "x"))
	b.Close()
}
