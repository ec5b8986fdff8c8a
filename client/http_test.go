package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dm-service/apperror"
	"dm-service/wire"

	"github.com/go-playground/assert/v2"
)

func reply(w http.ResponseWriter, code int, message string, data any) {
	body := map[string]any{"status": "success", "message": nil, "data": data}
	if code >= 400 {
		body["status"] = "error"
		body["message"] = message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func newServer(t *testing.T, handler http.HandlerFunc) *HTTPAPI {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			reply(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewHTTPAPI(server.URL+"/", "secret", time.Second)
}

func TestHTTPSendDecodesMessage(t *testing.T) {
	api := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, http.MethodPost)
		assert.Equal(t, r.URL.Path, "/v1/messenger/send/7")

		in := wire.SendInput{}
		_ = json.NewDecoder(r.Body).Decode(&in)
		reply(w, http.StatusOK, "", wire.Message{Id: 3, Sender: 1, Receiver: 7, Text: in.Text})
	})

	m, err := api.Send(context.Background(), 7, wire.SendInput{Text: "hello"})
	assert.Equal(t, err, nil)
	assert.Equal(t, m.Id, uint(3))
	assert.Equal(t, m.Text, "hello")
}

func TestHTTPErrorKinds(t *testing.T) {
	codes := map[string]int{
		"/v1/messenger/1": http.StatusBadRequest,
		"/v1/messenger/2": http.StatusForbidden,
		"/v1/messenger/3": http.StatusNotFound,
		"/v1/messenger/4": http.StatusServiceUnavailable,
	}
	api := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, codes[r.URL.Path], "nope", nil)
	})

	kinds := []apperror.Kind{apperror.KindValidation, apperror.KindAuthorization, apperror.KindNotFound, apperror.KindTransient}
	for i, kind := range kinds {
		_, err := api.Conversation(context.Background(), uint(i+1))
		assert.Equal(t, apperror.KindOf(err), kind)
		assert.Equal(t, apperror.Message(err), "nope")
	}
}

func TestHTTPSendsBearerToken(t *testing.T) {
	api := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, "", map[string]bool{"mutual": true})
	})

	mutual, err := api.Mutual(context.Background(), 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, mutual, true)

	api.token = "wrong"
	_, err = api.Mutual(context.Background(), 2)
	assert.Equal(t, apperror.KindOf(err), apperror.KindAuthorization)
}

func TestHTTPUnreachable(t *testing.T) {
	api := NewHTTPAPI("http://127.0.0.1:1", "secret", 200*time.Millisecond)

	err := api.MarkSeen(context.Background(), 1)
	assert.Equal(t, apperror.KindOf(err), apperror.KindTransient)
}
