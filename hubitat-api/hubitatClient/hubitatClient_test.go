package hubitatClient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

type fakeHub struct {
	mu       sync.Mutex
	calls    []string
	hubInfo  string
	catalog  string
	status   int
	requests []*http.Request
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = r.ParseForm()
	h.calls = append(h.calls, r.URL.Path)
	h.requests = append(h.requests, r)
	if r.PostForm.Get("access_token") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.URL.Path {
	case "/api/gethubinfo":
		w.Write([]byte(h.hubInfo))
	case "/api/getallthings":
		if h.status != 0 {
			w.WriteHeader(h.status)
		}
		w.Write([]byte(h.catalog))
	case "/api/doaction":
		w.Write([]byte(`{"ok":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type identityRecorder struct {
	got []hubitatStructs.HubIdentity
}

func (r *identityRecorder) SetHubIdentity(hub hubitatStructs.HubIdentity) {
	r.got = append(r.got, hub)
}

func newTestClient(t *testing.T, hub *fakeHub, token string, identity IdentityStore) *HubitatApiClient {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return NewHubitatApiClient(srv.URL+"/api/", token, Options{Timeout: 5 * time.Second, Identity: identity}, zap.NewNop().Sugar())
}

func TestFetchCatalog(t *testing.T) {
	hub := &fakeHub{
		hubInfo: `{"sitename":"Home","hubId":"abc-123"}`,
		catalog: `[
			{"type":"switch","id":"7","name":"Lamp","value":{"switch":"on","level":50}},
			{"type":"sensor","id":8,"value":null},
			"garbage",
			null
		]`,
	}
	identity := &identityRecorder{}
	c := newTestClient(t, hub, "secret", identity)

	records, err := c.FetchCatalog(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"/api/gethubinfo", "/api/getallthings"}, hub.calls)
	require.Len(t, records, 2)
	assert.Equal(t, hubitatStructs.FlexString("7"), records[0].Id)
	assert.Equal(t, "Lamp", records[0].Name)
	assert.Equal(t, "abc-123", records[0].HubId)
	assert.Equal(t, json.Number("50"), records[0].Value["level"])
	assert.Equal(t, hubitatStructs.FlexString("8"), records[1].Id)
	assert.Empty(t, records[1].Value)
	assert.Equal(t, []hubitatStructs.HubIdentity{{SiteName: "Home", HubId: "abc-123"}}, identity.got)
	assert.Equal(t, "abc-123", c.Hub().HubId)
}

func TestFetchCatalog_EmptyCatalog(t *testing.T) {
	for name, body := range map[string]string{
		"empty body": "",
		"object":     `{"error":"nope"}`,
		"null":       "null",
		"number":     "42",
	} {
		t.Run(name, func(t *testing.T) {
			hub := &fakeHub{hubInfo: `{"sitename":"Home","hubId":"1"}`, catalog: body}
			c := newTestClient(t, hub, "secret", nil)

			records, err := c.FetchCatalog(context.Background())

			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}

func TestFetchCatalog_Errors(t *testing.T) {
	t.Run("unauthorized identity", func(t *testing.T) {
		hub := &fakeHub{hubInfo: `{}`}
		c := newTestClient(t, hub, "wrong", nil)

		_, err := c.FetchCatalog(context.Background())

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "gethubinfo", fetchErr.Op)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
		assert.Equal(t, []string{"/api/gethubinfo"}, hub.calls)
	})

	t.Run("server error on catalog", func(t *testing.T) {
		hub := &fakeHub{hubInfo: `{"hubId":"1"}`, catalog: "boom", status: http.StatusInternalServerError}
		c := newTestClient(t, hub, "secret", nil)

		_, err := c.FetchCatalog(context.Background())

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "getallthings", fetchErr.Op)
	})

	t.Run("malformed catalog", func(t *testing.T) {
		hub := &fakeHub{hubInfo: `{"hubId":"1"}`, catalog: `[{"type":`}
		c := newTestClient(t, hub, "secret", nil)

		_, err := c.FetchCatalog(context.Background())

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		var syntaxErr *json.SyntaxError
		assert.True(t, errors.As(err, &syntaxErr))
	})

	t.Run("malformed identity", func(t *testing.T) {
		hub := &fakeHub{hubInfo: `<html>`}
		c := newTestClient(t, hub, "secret", nil)

		_, err := c.FetchCatalog(context.Background())

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "gethubinfo", fetchErr.Op)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		endpoint := srv.URL
		srv.Close()
		c := NewHubitatApiClient(endpoint, "secret", Options{Timeout: time.Second}, zap.NewNop().Sugar())

		_, err := c.FetchCatalog(context.Background())

		var fetchErr *FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})

	t.Run("cancelled", func(t *testing.T) {
		hub := &fakeHub{hubInfo: `{"hubId":"1"}`, catalog: `[]`}
		c := newTestClient(t, hub, "secret", nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.FetchCatalog(ctx)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSendAction(t *testing.T) {
	hub := &fakeHub{}
	c := newTestClient(t, hub, "secret", nil)
	device := hubitatStructs.NormalizedDevice{
		DeviceId:   "7",
		Kind:       "switch",
		Attributes: map[string]string{"switch": "off"},
	}

	ack, err := c.SendAction(context.Background(), device, "switch", "on")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ack.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(ack.Body))
	require.Len(t, hub.requests, 1)
	h := hub.requests[0].Header
	assert.Equal(t, "7", h.Get("swid"))
	assert.Equal(t, "switch p_1 off", h.Get("swattr"))
	assert.Equal(t, "on", h.Get("swvalue"))
	assert.Equal(t, "switch", h.Get("swtype"))
	assert.Equal(t, "switch", h.Get("subid"))
}

func TestSendAction_Error(t *testing.T) {
	hub := &fakeHub{}
	c := newTestClient(t, hub, "wrong", nil)

	_, err := c.SendAction(context.Background(), hubitatStructs.NormalizedDevice{DeviceId: "7"}, "level", "40")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "doaction", fetchErr.Op)
}
