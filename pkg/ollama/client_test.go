package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, content string, seen *api.ChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		line, err := json.Marshal(api.ChatResponse{
			Model:   "test-model",
			Message: api.Message{Role: "assistant", Content: content},
			Done:    true,
		})
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write(append(line, '\n'))
	}))
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://localhost:11434/api/chat", nil)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient("localhost", nil)
	assert.Error(t, err)

	_, err = NewClient("://bad", nil)
	assert.Error(t, err)
}

func TestLocateSubject(t *testing.T) {
	var seen api.ChatRequest
	srv := newTestServer(t, `{"primary":{"label":"dog","confidence":0.9,"box":{"x":0.1,"y":0.2,"w":0.3,"h":0.4},"cx":0.25,"cy":0.4},"description":"a dog"}`, &seen)
	defer srv.Close()

	c, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	result, err := c.LocateSubject(context.Background(), "llava", "where?", []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, "dog", result.Primary.Label)
	assert.InDelta(t, 0.25, result.Primary.Cx, 1e-12)
	assert.InDelta(t, 0.3, result.Primary.Box.W, 1e-12)
	assert.Equal(t, "a dog", result.Description)

	assert.Equal(t, "llava", seen.Model)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "where?", seen.Messages[0].Content)
	require.Len(t, seen.Messages[0].Images, 1)
	assert.Equal(t, api.ImageData{0xFF, 0xD8, 0xFF}, seen.Messages[0].Images[0])
	assert.NotEmpty(t, seen.Format)
}

func TestLocateSubject_EmptyResponse(t *testing.T) {
	srv := newTestServer(t, "  ", nil)
	defer srv.Close()

	c, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = c.LocateSubject(context.Background(), "llava", "where?", []byte{1})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLocateSubject_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llava\" not found"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = c.LocateSubject(context.Background(), "llava", "where?", []byte{1})
	assert.Error(t, err)
}
