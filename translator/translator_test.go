package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		text string
		lang string
	}{
		{"", "en"},
		{"hello there", "en"},
		{"你好", "zh"},
		{"привет", "ru"},
		{"こんにちは", "ja"},
		{"안녕하세요", "ko"},
		{"γεια σου", "el"},
		{"donde esta la biblioteca", "es"},
		{"ich bin nicht hier", "de"},
	}
	for _, c := range cases {
		assert.Equal(t, Detect(c.text), c.lang)
	}
}

func TestMyMemoryTranslate(t *testing.T) {
	var langpair string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		langpair = r.URL.Query().Get("langpair")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"responseData": map[string]any{"translatedText": "hola"},
		})
	}))
	defer server.Close()

	m := NewMyMemory(server.URL, time.Second)
	result, err := m.Translate(context.Background(), "hello", "es", AutoDetect)
	assert.Equal(t, err, nil)
	assert.Equal(t, result.Text, "hola")
	assert.Equal(t, result.Source, "en")
	assert.Equal(t, result.Target, "es")
	assert.Equal(t, langpair, "en|es")
}

func TestMyMemoryValidation(t *testing.T) {
	m := NewMyMemory("http://127.0.0.1:1", time.Second)

	_, err := m.Translate(context.Background(), "  ", "es", "")
	assert.Equal(t, err, ErrEmptyText)

	_, err = m.Translate(context.Background(), "hello", "", "")
	assert.Equal(t, err, ErrNoTarget)
}

func TestMyMemoryEmptyTranslation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"responseData":{"translatedText":""}}`))
	}))
	defer server.Close()

	_, err := NewMyMemory(server.URL, time.Second).Translate(context.Background(), "hello", "fr", "en")
	assert.Equal(t, err, ErrNoTranslation)
}
