package client

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/linkshelf/internal/models"
)

func TestStream_ParsesFrames(t *testing.T) {
	body := strings.Join([]string{
		": ping",
		"",
		"event: insert",
		`data: {"eventType":"insert","new":{"id":1,"title":"a","url":"https://a.example","category":"C","user_id":"u"}}`,
		"",
		"event: truncate",
		`data: {"eventType":"truncate"}`,
		"",
		"data: not json",
		"",
		"event: delete",
		`data: {"eventType":"delete","old":{"id":1}}`,
		"",
		"",
	}, "\n")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		changes: make(chan models.Change),
		body:    io.NopCloser(strings.NewReader(body)),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.read(ctx)

	var got []models.Change
	for c := range s.Changes() {
		got = append(got, c)
	}
	require.NoError(t, s.Close())

	require.Len(t, got, 2, "heartbeats and malformed frames are skipped")
	assert.Equal(t, models.ChangeCreated, got[0].Kind)
	assert.Equal(t, "a", got[0].Record.Title)
	assert.Equal(t, models.ChangeDeleted, got[1].Kind)
	assert.Equal(t, int64(1), got[1].BookmarkID)
}

func TestCodeFromLink(t *testing.T) {
	code, err := CodeFromLink("http://links.test/auth/callback?code=abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", code)

	_, err = CodeFromLink("http://links.test/auth/callback")
	assert.Error(t, err)
}
