package httpx

import (
	"encoding/json"
	"github.com/ariefcatur/go-roti-bot/internal/approval"
	"github.com/ariefcatur/go-roti-bot/internal/bot"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/convo"
	"github.com/ariefcatur/go-roti-bot/internal/intent"
	"github.com/ariefcatur/go-roti-bot/internal/memory"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore(catalog.Seed...)
	wf := &approval.Workflow{Orders: store, AdminID: "admin", AdminChatID: "admin-chat"}
	eng := &bot.Engine{
		Catalog:   store,
		Resolver:  intent.NewResolver(store, nil, 0, nil),
		Flow:      &convo.Flow{States: &convo.Tracker{Store: convo.NewMemoryStore(), TTL: 5 * time.Minute}, Catalog: store},
		Orders:    &orders.Manager{Catalog: store, Orders: store, Notifier: wf},
		Approvals: wf,
	}
	r := NewRouter()
	(&EventsHandler{Dispatcher: &bot.Dispatcher{Engine: eng, Sink: chat.LogSink{}}, Catalog: store}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, EventsResp) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out EventsResp
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestPostEvent_Message(t *testing.T) {
	srv := newServer(t)

	resp, out := post(t, srv, `{"message":{"user_id":"u1","chat_id":"c1","text":"menu"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Replies, 1)
	assert.Equal(t, "c1", out.Replies[0].ChatID)
	assert.Contains(t, out.Replies[0].Text, "Roti Premium")
	require.NotEmpty(t, out.Replies[0].Buttons)
	assert.Equal(t, "select_product|premium", out.Replies[0].Buttons[0][0].Action)
}

func TestPostEvent_Callback(t *testing.T) {
	srv := newServer(t)

	_, out := post(t, srv, `{"callback":{"user_id":"u1","chat_id":"c1","action":"select_product|premium"}}`)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0].Text, "Mau pesan")

	_, out = post(t, srv, `{"callback":{"user_id":"u1","chat_id":"c1","action":"bogus"}}`)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0].Text, "tidak berlaku")
}

func TestPostEvent_CarriesNotifications(t *testing.T) {
	srv := newServer(t)

	_, out := post(t, srv, `{"message":{"user_id":"u1","chat_id":"c1","text":"pesan premium 2"}}`)
	require.Len(t, out.Replies, 2)
	assert.Equal(t, "c1", out.Replies[0].ChatID)
	admin := out.Replies[1]
	assert.Equal(t, "admin-chat", admin.ChatID)
	assert.Contains(t, admin.Text, "Order Baru")
	require.NotEmpty(t, admin.Buttons)
	approve := admin.Buttons[0][0].Action
	assert.True(t, strings.HasPrefix(approve, "admin_approve|INV-"), approve)

	_, out = post(t, srv, `{"callback":{"user_id":"admin","chat_id":"admin-chat","action":"`+approve+`"}}`)
	require.Len(t, out.Replies, 2)
	assert.Equal(t, "admin-chat", out.Replies[0].ChatID)
	assert.Equal(t, "c1", out.Replies[1].ChatID)
	assert.Contains(t, out.Replies[1].Text, "disetujui")
}

func TestPostEvent_BadRequests(t *testing.T) {
	srv := newServer(t)

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"message":{"user_id":"u1","text":"menu"}}`,
		`{"message":{"user_id":"u1","chat_id":"c1","text":"a"},"callback":{"user_id":"u1","chat_id":"c1","action":"x"}}`,
		`{"msg":{}}`,
	} {
		resp, _ := post(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestListProductsAndHealth(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	var ps []catalog.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ps))
	require.Len(t, ps, 1)
	assert.Equal(t, "premium", ps[0].Key)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
