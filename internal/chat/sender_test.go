package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/feedbot/internal/config"
)

func TestWebhookSenderPostsPayload(t *testing.T) {
	assert := assert.New(t)

	var got webhookPayload
	var method, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		assert.Nil(json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	uut := NewWebhookSender(srv.URL, "feedbot", time.Second)
	defer uut.Close()

	err := uut.Send(context.Background(), "town-square", "2024-01-02 来自 tech 的新消息:\nhi")
	assert.Nil(err)
	assert.Equal(http.MethodPost, method)
	assert.Equal("application/json", contentType)
	assert.Equal("town-square", got.Channel)
	assert.Equal("feedbot", got.Username)
	assert.Equal("2024-01-02 来自 tech 的新消息:\nhi", got.Text)
}

func TestWebhookSenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, "", time.Second).Send(context.Background(), "c", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "channel not found")
}

func TestWebhookSenderContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewWebhookSender(srv.URL, "", time.Second).Send(ctx, "c", "t"))
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(config.ChatConfig{Driver: "webhook", WebhookURL: "http://localhost/hook"})
	require.NoError(t, err)
	assert.IsType(t, &WebhookSender{}, s)

	s, err = New(config.ChatConfig{Driver: "log"})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)
	assert.NoError(t, s.Send(context.Background(), "c", "hello"))

	_, err = New(config.ChatConfig{Driver: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNATSSubject(t *testing.T) {
	assert.Equal(t, "feedbot.chat.news", (&NATSSender{prefix: "feedbot.chat"}).Subject("news"))
	assert.Equal(t, "news", (&NATSSender{}).Subject("news"))
}

func TestNATSSenderPublishes(t *testing.T) {
	url := os.Getenv("FEEDBOT_TEST_NATS_URL")
	if url == "" {
		t.Skip("FEEDBOT_TEST_NATS_URL 未设置")
	}
	assert := assert.New(t)

	uut, err := NewNATSSender(url, "ut-feedbot")
	require.NoError(t, err)
	defer uut.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	msgs := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("ut-feedbot.news", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	assert.Nil(uut.Send(context.Background(), "news", "hello"))
	select {
	case m := <-msgs:
		assert.Equal("hello", string(m.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("未收到 NATS 消息")
	}
}
