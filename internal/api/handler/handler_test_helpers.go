package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/paas/internal/api/response"
)

// newRequest builds a JSON request. A nil body sends none.
func newRequest(method, target string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	data, _ := json.Marshal(body)
	return newRawRequest(method, target, string(data))
}

func newRawRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withURLParams sets chi route parameters from key/value pairs, as the
// router would after matching.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeError returns the message of an error body, or the raw body when
// it is not one.
func decodeError(rec *httptest.ResponseRecorder) string {
	var body response.Error
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body); err != nil || body.Error == "" {
		return rec.Body.String()
	}
	return body.Error
}
