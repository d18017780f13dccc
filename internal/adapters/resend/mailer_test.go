package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiporbit/shiporbit/internal/core/ports"
)

func TestSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer srv.Close()

	m := NewMailer("re_test", "ShipOrbit <shiporbit@example.com>")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	m.client.BaseURL = base

	err = m.Send(context.Background(), ports.Email{
		To:      []string{"grace@example.com"},
		Subject: "Verify Your Email",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "ShipOrbit <shiporbit@example.com>", got["from"])
	assert.Equal(t, "Verify Your Email", got["subject"])
	assert.Equal(t, "<p>hi</p>", got["html"])
}

func TestSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid from field."}`))
	}))
	defer srv.Close()

	m := NewMailer("re_test", "nobody")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	m.client.BaseURL = base

	assert.Error(t, m.Send(context.Background(), ports.Email{To: []string{"a@example.com"}}))
}

func TestLogMailerKeepsBodyOutOfLogs(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.TraceLevel)
	defer log.SetLevel(level)

	err := LogMailer{}.Send(context.Background(), ports.Email{
		To:      []string{"grace@example.com"},
		Subject: "Reset your ShipOrbit password",
		HTML:    `<a href="http://127.0.0.1:5173/reset-password/secret-token">reset</a>`,
	})
	require.NoError(t, err)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "Reset your ShipOrbit password", entry.Data["subject"])
	assert.Equal(t, []string{"grace@example.com"}, entry.Data["to"])
	for _, e := range hook.AllEntries() {
		s, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, s, "secret-token")
	}
}
