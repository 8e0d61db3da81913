// Package sse implements a Server-Sent Events broker for the bookmark change feed.
package sse

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
)

const clientBuffer = 64

var _ SessionVerifier = (*auth.Service)(nil)

// SessionVerifier re-checks the session behind an open stream.
type SessionVerifier interface {
	VerifySession(ctx context.Context, sessionID string) (*models.Session, error)
}

type subscriber struct {
	owner   string
	session string // empty for subscriptions not tied to a session
}

type subscribeReq struct {
	sub subscriber
	ch  chan []byte
}

type countReq struct {
	owner string // empty counts every client
	resp  chan int
}

// Broker manages SSE client connections and fans changes out to their owners.
//
// Concurrency model: a single internal event loop (goroutine) owns the client
// registry. Public methods communicate with this loop through channels, so no
// mutexes are required.
type Broker struct {
	heartbeat time.Duration
	verifier  SessionVerifier
	log       logger.Logger

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	revokeCh      chan string
	publishCh     chan models.Change
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Connected streams receive a comment line
// every heartbeat interval, and before each one the stream's session is
// re-checked with verifier. A nil verifier skips the re-check.
func NewBroker(heartbeat time.Duration, verifier SessionVerifier, log logger.Logger) *Broker {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}

	b := &Broker{
		heartbeat:     heartbeat,
		verifier:      verifier,
		log:           log,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		revokeCh:      make(chan string),
		publishCh:     make(chan models.Change, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	// owner id -> client channels
	clients := make(map[string]map[chan []byte]struct{})
	// session id -> client channels
	sessions := make(map[string]map[chan []byte]struct{})
	subs := make(map[chan []byte]subscriber)

	drop := func(ch chan []byte) {
		sub, ok := subs[ch]
		if !ok {
			return
		}
		delete(subs, ch)
		delete(clients[sub.owner], ch)
		if len(clients[sub.owner]) == 0 {
			delete(clients, sub.owner)
		}
		if sub.session != "" {
			delete(sessions[sub.session], ch)
			if len(sessions[sub.session]) == 0 {
				delete(sessions, sub.session)
			}
		}
		close(ch)
	}

	deliver := func(c models.Change) {
		owned := clients[c.OwnerID]
		if len(owned) == 0 {
			return
		}
		raw, err := Frame(c)
		if err != nil {
			b.log.Warn("sse: encode change failed", logger.Int64("seq", c.Seq), logger.Error(err))
			return
		}
		for ch := range owned {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			owner := req.sub.owner
			if clients[owner] == nil {
				clients[owner] = make(map[chan []byte]struct{})
			}
			clients[owner][req.ch] = struct{}{}
			if id := req.sub.session; id != "" {
				if sessions[id] == nil {
					sessions[id] = make(map[chan []byte]struct{})
				}
				sessions[id][req.ch] = struct{}{}
			}
			subs[req.ch] = req.sub

		case ch := <-b.unsubscribeCh:
			drop(ch)

		case id := <-b.revokeCh:
			for ch := range sessions[id] {
				drop(ch)
			}

		case c := <-b.publishCh:
			deliver(c)

		case req := <-b.countReqCh:
			if req.owner == "" {
				req.resp <- len(subs)
			} else {
				req.resp <- len(clients[req.owner])
			}
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for ownerID and returns its channel.
func (b *Broker) Subscribe(ownerID string) chan []byte {
	return b.subscribe(subscriber{owner: ownerID})
}

// SubscribeSession is Subscribe for a client authenticated by sessionID.
// RevokeSession closes its channel.
func (b *Broker) SubscribeSession(ownerID, sessionID string) chan []byte {
	return b.subscribe(subscriber{owner: ownerID, session: sessionID})
}

func (b *Broker) subscribe(sub subscriber) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{sub: sub, ch: ch}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// RevokeSession closes every stream opened with sessionID.
func (b *Broker) RevokeSession(sessionID string) {
	if b.closed.Load() || sessionID == "" {
		return
	}
	select {
	case b.revokeCh <- sessionID:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return b.count("")
}

// OwnerClientCount returns the number of clients connected for ownerID.
func (b *Broker) OwnerClientCount(ownerID string) int {
	if ownerID == "" {
		return 0
	}
	return b.count(ownerID)
}

func (b *Broker) count(owner string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{owner: owner, resp: resp}:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishChange delivers c to the subscribers of c.OwnerID only.
func (b *Broker) PublishChange(c models.Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The caller must
// already be authenticated; the stream carries that user's changes only and
// ends when the session is revoked or expires.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromContext(ctx)
	sess := auth.SessionFromContext(ctx)
	if user == nil || sess == nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the headers go out so a client that has seen the
	// response cannot miss a change published right after.
	ch := b.SubscribeSession(user.ID, sess.ID)
	defer b.Unsubscribe(ch)

	log := b.log.With(logger.String("user_id", user.ID), logger.String("session_id", sess.ID))
	log.Debug("sse: client connected", logger.Int("owner_clients", b.OwnerClientCount(user.ID)))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()
	expiry := time.NewTimer(time.Until(sess.ExpiresAt))
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			log.Debug("sse: session expired, closing stream")
			return
		case <-heartbeat.C:
			if !b.sessionActive(ctx, sess.ID, log) {
				return
			}
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// sessionActive re-checks sessionID. Lookup failures end the stream too; the
// client reconnects and authenticates again.
func (b *Broker) sessionActive(ctx context.Context, sessionID string, log logger.Logger) bool {
	if b.verifier == nil {
		return true
	}
	_, err := b.verifier.VerifySession(ctx, sessionID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, apperr.ErrUnauthenticated):
		log.Debug("sse: session no longer valid, closing stream", logger.Error(err))
	case ctx.Err() == nil:
		log.Warn("sse: session check failed, closing stream", logger.Error(err))
	}
	return false
}
