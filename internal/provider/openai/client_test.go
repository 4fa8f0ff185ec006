package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", MaxRetries: 2}, nil)
	require.NoError(t, err)
	client.sleep = func(time.Duration) {}
	return client
}

func chatReply(t *testing.T, w http.ResponseWriter, translations []string) {
	t.Helper()
	content, err := json.Marshal(translationPayload{Translations: translations})
	require.NoError(t, err)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": string(content)}}},
	})
}

func TestTranslateRoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Messages[0].Content, "from en into fr")
		chatReply(t, w, []string{"Bonjour", "Au revoir"})
	})

	out, err := client.Translate(context.Background(), []string{"Hello", "Goodbye"}, "fr", "en")
	require.NoError(t, err)
	require.Equal(t, []string{"Bonjour", "Au revoir"}, out)
}

func TestTranslateRejectsCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, []string{"Bonjour"})
	})
	_, err := client.Translate(context.Background(), []string{"Hello", "Goodbye"}, "fr", "en")
	require.ErrorContains(t, err, "expected 2 translations")
}

func TestTranslateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatReply(t, w, []string{"Hola"})
	})

	out, err := client.Translate(context.Background(), []string{"Hello"}, "es", "")
	require.NoError(t, err)
	require.Equal(t, []string{"Hola"}, out)
	require.EqualValues(t, 2, calls.Load())
}

func TestTranslateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := client.Translate(context.Background(), []string{"Hello"}, "es", "")
	var he *httpError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusBadRequest, he.StatusCode)
	require.EqualValues(t, 1, calls.Load())
}

func TestGenerateImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req imagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "1536x1024", req.Size)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"b64_json": "aW1n"}}})
	})
	out, err := client.GenerateImage(context.Background(), "beach", "16:9")
	require.NoError(t, err)
	require.Equal(t, "aW1n", out)
}

type brokenImages struct{}

func (brokenImages) GenerateImage(context.Context, string, string) (string, error) {
	return "", errors.New("quota")
}

func TestFallbackImagesReturnsPlaceholder(t *testing.T) {
	out, err := NewFallbackImages(brokenImages{}, nil).GenerateImage(context.Background(), "Sunset over <Santorini>", "16:9")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:image/svg+xml;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "data:image/svg+xml;base64,"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `width="1600"`)
	require.Contains(t, string(raw), "&lt;Santorini&gt;")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}
