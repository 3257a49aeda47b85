package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"threadline/internal/models"
	"threadline/internal/service"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// listen serves the app on a random local port until the test ends.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return ln.Addr().String()
}

func dialListener(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	url := "ws://" + addr + "/ws/comments"
	if token != "" {
		url += "?token=" + token
	}

	var (
		conn *websocket.Conn
		err  error
	)
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestCommentStream_ReceivesEvents(t *testing.T) {
	e := newTestEnv(t)
	addr := e.listen(t)

	anon := dialListener(t, addr, "")
	viewer := dialListener(t, addr, e.bob)
	require.Eventually(t, func() bool { return e.srv.hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	created := e.createComment(t, e.alice, "live", nil)

	for _, conn := range []*websocket.Conn{anon, viewer} {
		f := readFrame(t, conn)
		assert.Equal(t, service.EventNewComment, f.Type)

		var view models.CommentView
		require.NoError(t, json.Unmarshal(f.Payload, &view))
		assert.Equal(t, created.ID, view.ID)
		assert.Equal(t, "live", view.Content)
		assert.False(t, view.CanEdit)
	}

	status, _ := e.do(t, http.MethodPost, "/api/comments/"+created.ID+"/like", e.bob, nil)
	require.Equal(t, http.StatusOK, status)

	f := readFrame(t, viewer)
	assert.Equal(t, service.EventCommentReaction, f.Type)
	var reaction service.ReactionPayload
	require.NoError(t, json.Unmarshal(f.Payload, &reaction))
	assert.Equal(t, service.ReactionPayload{
		CommentID: created.ID,
		Type:      service.ReactionTypeLike,
		LikeCount: 1,
		UserID:    bobID,
	}, reaction)

	status, _ = e.do(t, http.MethodPut, "/api/comments/"+created.ID, e.alice, map[string]any{"content": "edited"})
	require.Equal(t, http.StatusOK, status)
	f = readFrame(t, viewer)
	assert.Equal(t, service.EventUpdatedComment, f.Type)

	status, _ = e.do(t, http.MethodDelete, "/api/comments/"+created.ID, e.alice, nil)
	require.Equal(t, http.StatusOK, status)
	f = readFrame(t, viewer)
	assert.Equal(t, service.EventDeletedComment, f.Type)
	var deleted service.DeletedPayload
	require.NoError(t, json.Unmarshal(f.Payload, &deleted))
	assert.Equal(t, created.ID, deleted.ID)
}

func TestCommentStream_FailedMutationEmitsNothing(t *testing.T) {
	e := newTestEnv(t)
	addr := e.listen(t)

	conn := dialListener(t, addr, "")
	require.Eventually(t, func() bool { return e.srv.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, _ := e.do(t, http.MethodPost, "/api/comments", e.alice, map[string]any{"content": ""})
	require.Equal(t, http.StatusBadRequest, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestCommentStream_RequiresUpgrade(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodGet, "/ws/comments", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.False(t, env.Success)
}

func TestCommentStream_ShutdownSendsGoingAway(t *testing.T) {
	e := newTestEnv(t)
	addr := e.listen(t)

	conn := dialListener(t, addr, e.bob)
	require.Eventually(t, func() bool { return e.srv.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Keep the pump busy while the hub shuts down.
	for i := 0; i < 20; i++ {
		e.srv.hub.BroadcastAll([]byte(`{"type":"newComment","payload":{}}`))
	}
	require.NoError(t, e.srv.hub.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, "Server shutting down", closeErr.Text)
}
