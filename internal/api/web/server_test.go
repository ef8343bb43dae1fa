package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podplay/internal/api/message"
	"github.com/osa030/podplay/internal/app/pages"
	"github.com/osa030/podplay/internal/app/provider"
	"github.com/osa030/podplay/internal/app/session"
	"github.com/osa030/podplay/internal/domain/episode"
)

// fakeEpisodes serves a fixed list.
type fakeEpisodes struct {
	list []episode.Episode
}

func (f *fakeEpisodes) Latest(_ context.Context, limit int) ([]episode.Episode, error) {
	if len(f.list) > limit {
		return f.list[:limit], nil
	}
	return f.list, nil
}

func (f *fakeEpisodes) Episode(_ context.Context, id string) (*episode.Episode, error) {
	for _, e := range f.list {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, provider.ErrNotFound
}

func (f *fakeEpisodes) Episodes(ctx context.Context, ids []string) (episode.List, error) {
	var list episode.List
	for _, id := range ids {
		e, err := f.Episode(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, nil
}

// fakePages renders trivial pages.
type fakePages struct{}

func (fakePages) Home(context.Context) ([]byte, error) {
	return []byte("<h1>home</h1>"), nil
}

func (fakePages) Episode(_ context.Context, slug string) ([]byte, error) {
	if slug != "a" {
		return nil, pages.ErrNotFound
	}
	return []byte("<h1>a</h1>"), nil
}

// testClock is a settable clock shared with server goroutines.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	return newTestServerWithSessions(t, session.Config{})
}

func newTestServerWithSessions(t *testing.T, cfg session.Config) (*httptest.Server, *session.Manager) {
	t.Helper()

	sessions := session.NewManager(cfg)
	episodes := &fakeEpisodes{list: []episode.Episode{
		{ID: "a", Title: "A", URL: "https://example.com/a.mp3"},
		{ID: "b", Title: "B", URL: "https://example.com/b.mp3"},
		{ID: "c", Title: "C", URL: "https://example.com/c.mp3"},
	}}

	mux := http.NewServeMux()
	New(fakePages{}, nil, sessions, episodes, Config{CookieName: "podplay_session", HomeLimit: 12}).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Cleanup(sessions.CloseAll)
	return server, sessions
}

// noRedirect returns a client that does not follow redirects.
func noRedirect(server *httptest.Server) *http.Client {
	c := server.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "podplay_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestServer_Pages(t *testing.T) {
	server, sessions := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "home", path: "/", wantStatus: http.StatusOK, wantBody: "home"},
		{name: "episode", path: "/episodes/a", wantStatus: http.StatusOK, wantBody: "<h1>a</h1>"},
		{name: "missing episode", path: "/episodes/zzz", wantStatus: http.StatusNotFound},
		{name: "unknown route", path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := server.Client().Get(server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), tt.wantBody)
				assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
			}
		})
	}

	assert.Equal(t, 3, sessions.Count(), "page views without a cookie open sessions")
}

func TestServer_PlayActions(t *testing.T) {
	server, sessions := newTestServer(t)
	client := noRedirect(server)

	resp, err := client.Get(server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	cookie := sessionCookie(t, resp)

	post := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, server.URL+path, nil)
		require.NoError(t, err)
		req.AddCookie(cookie)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	sess, err := sessions.Get(cookie.Value)
	require.NoError(t, err)

	resp = post("/player/play/b")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/episodes/b", resp.Header.Get("Location"))
	snap := sess.Player.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "b", snap.Current.ID)
	assert.Len(t, snap.Episodes, 1)

	resp = post("/player/play-list?index=2")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	snap = sess.Player.Snapshot()
	assert.Len(t, snap.Episodes, 3)
	assert.Equal(t, 2, snap.CurrentIndex)
	assert.True(t, snap.IsPlaying)

	assert.Equal(t, http.StatusBadRequest, post("/player/play-list?index=7").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post("/player/play-list?index=x").StatusCode)
	assert.Equal(t, http.StatusNotFound, post("/player/play/zzz").StatusCode)

	assert.Equal(t, 2, sess.Player.Snapshot().CurrentIndex, "rejected actions keep the state")
	assert.Equal(t, 1, sessions.Count())
}

func TestServer_PlayerSocket(t *testing.T) {
	server, sessions := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/player"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	cookie := sessionCookie(t, resp)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readNotification := func() message.Notification {
		t.Helper()
		var n message.Notification
		require.NoError(t, conn.ReadJSON(&n))
		return n
	}

	initial := readNotification()
	assert.Equal(t, "initial_state", initial.Type)
	assert.Equal(t, cookie.Value, initial.SessionID)
	assert.Nil(t, initial.Snapshot.Current)

	sess, err := sessions.Get(cookie.Value)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return sess.Notifications.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(command{Op: OpPlayList, Slugs: []string{"c", "a"}, Index: 0}))
	changed := readNotification()
	assert.Equal(t, "state_changed", changed.Type)
	assert.Equal(t, "queue_replaced", changed.Event)
	require.NotNil(t, changed.Snapshot.Current)
	assert.Equal(t, "c", changed.Snapshot.Current.ID)
	assert.True(t, changed.Snapshot.HasNext)

	require.NoError(t, conn.WriteJSON(command{Op: OpEnded}))
	changed = readNotification()
	assert.Equal(t, "index_changed", changed.Event)
	assert.Equal(t, "a", changed.Snapshot.Current.ID)

	require.NoError(t, conn.WriteJSON(command{Op: OpSetPlaying, Playing: false}))
	changed = readNotification()
	assert.Equal(t, "transport_changed", changed.Event)
	assert.False(t, changed.Snapshot.IsPlaying)

	require.NoError(t, conn.WriteJSON(command{Op: "rewind"}))
	var rejected map[string]any
	require.NoError(t, conn.ReadJSON(&rejected))
	assert.Equal(t, "error", rejected["type"])
	assert.Equal(t, "rewind", rejected["op"])

	require.NoError(t, conn.WriteJSON(command{Op: OpPlay, Slug: "missing"}))
	rejected = nil
	require.NoError(t, conn.ReadJSON(&rejected))
	assert.Equal(t, "error", rejected["type"])

	require.NoError(t, conn.WriteJSON(command{Op: OpClear}))
	changed = readNotification()
	assert.Equal(t, "queue_cleared", changed.Event)
	assert.Empty(t, changed.Snapshot.Episodes)
}

func TestServer_PlayerSocketEndsWithSession(t *testing.T) {
	server, sessions := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/player"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	cookie := sessionCookie(t, resp)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var initial json.RawMessage
	require.NoError(t, conn.ReadJSON(&initial))

	require.NoError(t, sessions.Close(cookie.Value))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			return
		}
	}
}

func TestServer_PlayerSocketKeepsSessionAlive(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	server, sessions := newTestServerWithSessions(t, session.Config{IdleTimeout: time.Hour, Now: clock.Now})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/player"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var n message.Notification
	require.NoError(t, conn.ReadJSON(&n))
	require.Equal(t, "initial_state", n.Type)

	for i := 0; i < 3; i++ {
		clock.Advance(40 * time.Minute)
		require.NoError(t, conn.WriteJSON(command{Op: OpToggleLoop}))
		require.NoError(t, conn.ReadJSON(&n))
		assert.Equal(t, "transport_changed", n.Event)
		assert.Equal(t, 0, sessions.ExpireIdle())
	}
	assert.Equal(t, 1, sessions.Count())
}
