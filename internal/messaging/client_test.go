package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody sendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "phone-1", "token-abc")
	err := client.SendText(context.Background(), "5511999990000", "Oi! Qual seu nome?")
	require.NoError(t, err)

	assert.Equal(t, "/phone-1/messages", gotPath)
	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "5511999990000", gotBody.To)
	assert.Equal(t, "Oi! Qual seu nome?", gotBody.Text.Body)
}

func TestSendTextHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token","code":190}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "phone-1", "bad-token")
	err := client.SendText(context.Background(), "5511999990000", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendTextEmbeddedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"recipient blocked","code":131030}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "phone-1", "token")
	err := client.SendText(context.Background(), "5511999990000", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient blocked")
}

func TestSendTextRequiresContact(t *testing.T) {
	client := NewClient("http://example.invalid", "phone-1", "token")
	assert.Error(t, client.SendText(context.Background(), "", "hi"))
}
