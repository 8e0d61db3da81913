package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSessions struct {
	sess *models.Session
	err  error
}

func (f fakeSessions) CurrentSession(context.Context) (*models.Session, error) {
	return f.sess, f.err
}

type fakeSub struct {
	ch     chan models.Change
	mu     sync.Mutex
	closed int
}

func (s *fakeSub) Changes() <-chan models.Change { return s.ch }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSub) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFeed struct {
	sub       *fakeSub
	err       error
	mu        sync.Mutex
	subscribe int
}

func (f *fakeFeed) Subscribe(context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribe++
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func newFeed() *fakeFeed {
	return &fakeFeed{sub: &fakeSub{ch: make(chan models.Change)}}
}

var activeSession = fakeSessions{sess: &models.Session{ID: "s1", UserID: "u1"}}

func TestOpen_WithoutSessionIsStatic(t *testing.T) {
	for name, sessions := range map[string]fakeSessions{
		"nil session":     {},
		"unauthenticated": {err: apperr.ErrUnauthenticated},
	} {
		t.Run(name, func(t *testing.T) {
			feed := newFeed()
			v, err := Open(context.Background(), sessions, feed, []models.Bookmark{bm(1, "one")}, Options{})
			require.NoError(t, err)
			defer v.Close()

			assert.False(t, v.Live())
			assert.Zero(t, feed.subscribe, "no subscription without a session")
			select {
			case <-v.Done():
			default:
				t.Fatal("static view should report done")
			}
			assert.Len(t, v.Snapshot(), 1)
		})
	}
}

func TestOpen_SessionErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	_, err := Open(context.Background(), fakeSessions{err: boom}, newFeed(), nil, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestOpen_SubscribeErrorPropagates(t *testing.T) {
	feed := &fakeFeed{err: errors.New("refused")}
	_, err := Open(context.Background(), activeSession, feed, nil, Options{})
	assert.Error(t, err)
}

func TestView_AppliesInDeliveryOrder(t *testing.T) {
	feed := newFeed()
	applied := make(chan []models.Bookmark, 4)
	v, err := Open(context.Background(), activeSession, feed, []models.Bookmark{bm(1, "one")}, Options{
		OnApply: func(_ models.Change, items []models.Bookmark) { applied <- items },
	})
	require.NoError(t, err)
	defer v.Close()
	require.True(t, v.Live())

	feed.sub.ch <- created(bm(2, "A"))
	feed.sub.ch <- updated(bm(2, "B"))
	feed.sub.ch <- deleted(1)

	var last []models.Bookmark
	for i := 0; i < 3; i++ {
		select {
		case last = <-applied:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for apply")
		}
	}

	want := []models.Bookmark{bm(2, "B")}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("hook items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, v.Snapshot()); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}
}

func TestView_CloseReleasesOnce(t *testing.T) {
	feed := newFeed()
	v, err := Open(context.Background(), activeSession, feed, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.Equal(t, 1, feed.sub.closeCount())

	select {
	case <-v.Done():
	default:
		t.Fatal("done not closed after Close")
	}
}

func TestView_ContextCancelReleases(t *testing.T) {
	feed := newFeed()
	ctx, cancel := context.WithCancel(context.Background())
	v, err := Open(ctx, activeSession, feed, nil, Options{})
	require.NoError(t, err)

	cancel()
	select {
	case <-v.Done():
	case <-time.After(time.Second):
		t.Fatal("view did not stop on cancel")
	}
	assert.Equal(t, 1, feed.sub.closeCount())
	require.NoError(t, v.Close())
	assert.Equal(t, 1, feed.sub.closeCount())
}

func TestView_FeedEndStopsLiveUpdates(t *testing.T) {
	feed := newFeed()
	v, err := Open(context.Background(), activeSession, feed, []models.Bookmark{bm(1, "one")}, Options{})
	require.NoError(t, err)
	defer v.Close()

	close(feed.sub.ch)
	select {
	case <-v.Done():
	case <-time.After(time.Second):
		t.Fatal("view did not stop when the feed ended")
	}
	assert.Len(t, v.Snapshot(), 1, "state survives the end of the feed")
}
