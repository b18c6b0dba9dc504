package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/keyhint/kit"
)

func chain(h http.Handler) http.Handler {
	mws := Stack()
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestStack_HeadersAndTrace(t *testing.T) {
	var traceID, transport string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		transport = kit.GetTransport(r.Context())
		if GetLogger(r.Context()) == nil {
			t.Error("no request logger")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pages", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options: %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control: %q", got)
	}
	if len(traceID) != 8 || rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("trace id: ctx=%q header=%q", traceID, rec.Header().Get("X-Trace-ID"))
	}
	if transport != "http" {
		t.Errorf("transport: %q", transport)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { method = r.Method }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/healthz", nil))
	if method != http.MethodGet {
		t.Errorf("method: %s", method)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"key":"ffffffff"}`)))
	if readErr == nil {
		t.Error("expected error reading past the limit")
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"k":1}`)))
	if readErr != nil {
		t.Errorf("small body: %v", readErr)
	}
}

func TestGetLogger_Default(t *testing.T) {
	if GetLogger(t.Context()) == nil {
		t.Error("GetLogger must fall back to the default logger")
	}
}
