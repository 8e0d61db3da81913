package feed

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/store"
	"github.com/starford/linkshelf/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

type recorder struct {
	mu      sync.Mutex
	changes []models.Change
}

func (r *recorder) add(c models.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []models.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Change(nil), r.changes...)
}

func startWatch(t *testing.T, db *store.DB, opts Options) (*recorder, func()) {
	t.Helper()
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, db, opts, logger.Nop(), rec.add) }()
	return rec, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestWatch_DeliversChangesInOrder(t *testing.T) {
	db := testutil.TestDB(t)
	u := testutil.TestUser(t, db, "feed@example.com")
	ctx := context.Background()

	rec, stop := startWatch(t, db, Options{PollInterval: 20 * time.Millisecond, Debounce: 5 * time.Millisecond, Retention: time.Hour})
	defer stop()
	time.Sleep(50 * time.Millisecond)

	b, err := db.CreateBookmark(ctx, u.ID, store.BookmarkFields{Title: "Go", URL: "https://go.dev", Category: "Dev"}, time.Now())
	require.NoError(t, err)
	_, err = db.UpdateBookmark(ctx, u.ID, b.ID, store.BookmarkFields{Title: "Go site", URL: "https://go.dev", Category: "Dev"})
	require.NoError(t, err)
	require.NoError(t, db.DeleteBookmark(ctx, u.ID, b.ID))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, 5*time.Second, 20*time.Millisecond)

	got := rec.snapshot()
	assert.Equal(t, models.ChangeCreated, got[0].Kind)
	assert.Equal(t, models.ChangeUpdated, got[1].Kind)
	assert.Equal(t, models.ChangeDeleted, got[2].Kind)
	assert.Less(t, got[0].Seq, got[1].Seq)
	assert.Less(t, got[1].Seq, got[2].Seq)
	require.NotNil(t, got[1].Record)
	assert.Equal(t, "Go site", got[1].Record.Title)
	assert.Nil(t, got[2].Record)
	for _, c := range got {
		assert.Equal(t, u.ID, c.OwnerID)
		assert.Equal(t, b.ID, c.BookmarkID)
	}
}

func TestWatch_StartsFromHead(t *testing.T) {
	db := testutil.TestDB(t)
	u := testutil.TestUser(t, db, "head@example.com")
	ctx := context.Background()

	_, err := db.CreateBookmark(ctx, u.ID, store.BookmarkFields{Title: "old", URL: "https://old.example", Category: "A"}, time.Now())
	require.NoError(t, err)

	rec, stop := startWatch(t, db, Options{PollInterval: 20 * time.Millisecond})
	defer stop()
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "changes from before Watch started must not be replayed")

	_, err = db.CreateBookmark(ctx, u.ID, store.BookmarkFields{Title: "new", URL: "https://new.example", Category: "A"}, time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "new", rec.snapshot()[0].Record.Title)
}

func TestWatch_WakesOnFileEvents(t *testing.T) {
	db := testutil.TestDB(t)
	u := testutil.TestUser(t, db, "wake@example.com")

	// A poll interval far beyond the assertion window leaves fsnotify as the only wake-up.
	rec, stop := startWatch(t, db, Options{PollInterval: time.Minute, Debounce: 10 * time.Millisecond})
	defer stop()
	time.Sleep(100 * time.Millisecond)

	_, err := db.CreateBookmark(context.Background(), u.ID, store.BookmarkFields{Title: "x", URL: "https://x.example", Category: "A"}, time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestDrainChanges_Batches(t *testing.T) {
	db := testutil.TestDB(t)
	u := testutil.TestUser(t, db, "batch@example.com")
	ctx := context.Background()

	for i := 0; i < batchSize+3; i++ {
		_, err := db.CreateBookmark(ctx, u.ID, store.BookmarkFields{Title: "t", URL: "https://b.example", Category: "A"}, time.Now())
		require.NoError(t, err)
	}

	var n int
	head, err := drainChanges(ctx, db, 0, func(models.Change) { n++ })
	require.NoError(t, err)
	assert.Equal(t, batchSize+3, n)

	latest, err := db.LatestChangeSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, latest, head)
}

func TestIsDBFile(t *testing.T) {
	dbPath := filepath.Join("data", "linkshelf.db")
	assert.True(t, isDBFile(dbPath, filepath.Join("data", "linkshelf.db")))
	assert.True(t, isDBFile(dbPath, filepath.Join("data", "linkshelf.db-wal")))
	assert.False(t, isDBFile(dbPath, filepath.Join("data", "linkshelf.db-shm")))
	assert.False(t, isDBFile(dbPath, filepath.Join("data", "other.db")))
	assert.True(t, isDBFile("./linkshelf.db", "linkshelf.db"))
}
