package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/models"
)

// SessionChecker reports the caller's active session. A nil session or
// apperr.ErrUnauthenticated means there is none.
type SessionChecker interface {
	CurrentSession(ctx context.Context) (*models.Session, error)
}

// Subscription is a live change stream. Changes is closed when the stream ends.
type Subscription interface {
	Changes() <-chan models.Change
	Close() error
}

// Feed opens change subscriptions scoped to the caller.
type Feed interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Options configures a View.
type Options struct {
	// OnApply, when set, runs on the view goroutine after each change is applied.
	// items is a copy of the sequence after the change.
	OnApply func(ch models.Change, items []models.Bookmark)
}

// View owns a Collection and the subscription feeding it.
type View struct {
	mu   sync.Mutex
	coll *Collection
	opts Options

	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// Open seeds a view with initial and, when sessions reports an active
// session, subscribes to feed. Without a session the view stays static and
// Done is already closed.
//
// The subscription is released by Close or when ctx is cancelled.
func Open(ctx context.Context, sessions SessionChecker, feed Feed, initial []models.Bookmark, opts Options) (*View, error) {
	v := &View{
		coll: New(initial),
		opts: opts,
		done: make(chan struct{}),
	}

	sess, err := sessions.CurrentSession(ctx)
	if err != nil && !errors.Is(err, apperr.ErrUnauthenticated) {
		return nil, err
	}
	if sess == nil {
		close(v.done)
		return v, nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := feed.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	v.sub = sub
	v.cancel = cancel

	go v.run(subCtx)
	return v, nil
}

func (v *View) run(ctx context.Context) {
	defer close(v.done)
	defer v.release()
	changes := v.sub.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			v.mu.Lock()
			v.coll.Apply(ch)
			var items []models.Bookmark
			if v.opts.OnApply != nil {
				items = v.coll.Items()
			}
			v.mu.Unlock()
			if v.opts.OnApply != nil {
				v.opts.OnApply(ch, items)
			}
		}
	}
}

// Live reports whether the view was opened with a subscription.
func (v *View) Live() bool {
	return v.sub != nil
}

// Snapshot returns a copy of the current sequence.
func (v *View) Snapshot() []models.Bookmark {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.coll.Items()
}

// Done is closed once the view stops receiving changes.
func (v *View) Done() <-chan struct{} {
	return v.done
}

func (v *View) release() {
	v.releaseOnce.Do(func() {
		v.releaseErr = v.sub.Close()
	})
}

// Close releases the subscription and waits for the view goroutine. It is
// safe to call more than once.
func (v *View) Close() error {
	if v.sub == nil {
		return nil
	}
	v.cancel()
	<-v.done
	return v.releaseErr
}
