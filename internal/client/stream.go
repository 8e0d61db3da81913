package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/reconcile"
	"github.com/starford/linkshelf/internal/sse"
)

// Stream is a live change feed read from GET /api/events.
type Stream struct {
	changes chan models.Change
	body    io.ReadCloser
	cancel  context.CancelFunc
	done    chan struct{}

	once sync.Once
}

var _ reconcile.Subscription = (*Stream)(nil)

// Subscribe opens the caller's change feed. The stream ends when ctx is
// cancelled, Close is called, or the server drops the connection; there is
// no reconnect.
func (c *Client) Subscribe(ctx context.Context) (reconcile.Subscription, error) {
	return c.Stream(ctx)
}

// Stream is Subscribe with the concrete type.
func (c *Client) Stream(ctx context.Context) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("client: subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, statusError(resp)
	}

	s := &Stream{
		changes: make(chan models.Change),
		body:    resp.Body,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.read(ctx)
	return s, nil
}

// Changes delivers decoded notifications in arrival order. It is closed when the stream ends.
func (s *Stream) Changes() <-chan models.Change {
	return s.changes
}

// Close ends the stream and waits for the reader. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
		<-s.done
	})
	return err
}

func (s *Stream) read(ctx context.Context) {
	defer close(s.done)
	defer close(s.changes)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates a frame.
			if data.Len() == 0 {
				continue
			}
			c, ok := decodeFrame(data.String())
			data.Reset()
			if !ok {
				continue
			}
			select {
			case s.changes <- c:
			case <-ctx.Done():
				return
			}
		case strings.HasPrefix(line, ":"):
			// Comment (heartbeat).
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

// decodeFrame parses one data payload. Unknown or malformed frames are skipped.
func decodeFrame(payload string) (models.Change, bool) {
	var m sse.Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return models.Change{}, false
	}
	c, err := m.Change()
	if err != nil {
		return models.Change{}, false
	}
	return c, true
}
