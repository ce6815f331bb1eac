package server

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlverezYari/camroll/internal/media"
)

func item(id, uri string) media.Item {
	return media.Item{ID: media.ID(id), URI: uri, Kind: media.KindPhoto, CreatedAt: time.Now()}
}

func TestSnapshotEndpoint(t *testing.T) {
	c := media.NewCollection()
	c.Prepend(item("a", "/roll/a.jpg"))
	c.Prepend(item("b", "/roll/b.jpg"))

	ts := httptest.NewServer(New("0", c).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/media")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []ItemView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "/media/b", got[0].URL)
	assert.Equal(t, "photo", got[1].Kind)
}

func TestMediaEndpointServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_1.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0644))

	c := media.NewCollection()
	c.Prepend(item("a", path))

	ts := httptest.NewServer(New("0", c).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/media/a")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg bytes", string(body))

	resp, err = http.Get(ts.URL + "/media/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIndexPage(t *testing.T) {
	c := media.NewCollection()
	c.Prepend(item("a", "/roll/a.jpg"))

	ts := httptest.NewServer(New("0", c).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `<span id="count">1</span>`)
	assert.Contains(t, string(body), `src="/media/a"`)
}

func TestReadOnly(t *testing.T) {
	ts := httptest.NewServer(New("0", media.NewCollection()).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/media", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	s := New("0", media.NewCollection())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Error(t, s.Stop())
}

func TestWebSocketPushesSnapshotOnChange(t *testing.T) {
	c := media.NewCollection()
	s := New("0", c)
	require.NoError(t, s.Start())
	defer s.Stop()

	host, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)

	conn, _, err := websocket.DefaultDialer.Dial("ws://127.0.0.1:"+port+"/ws/gallery", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial []ItemView
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Empty(t, initial)

	c.Prepend(item("a", "/roll/a.jpg"))

	var next []ItemView
	require.NoError(t, conn.ReadJSON(&next))
	require.Len(t, next, 1)
	assert.Equal(t, "a", next[0].ID)
}

func TestWebSocketRejectsCrossOrigin(t *testing.T) {
	s := New("0", media.NewCollection())
	require.NoError(t, s.Start())
	defer s.Stop()

	header := http.Header{"Origin": []string{"http://elsewhere.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws/gallery", header)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
