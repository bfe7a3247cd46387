package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestCORSMiddleware_FixedAllowList(t *testing.T) {
	cases := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"frontend-dev-port", "http://localhost:9000", true},
		{"frontend-alt-port", "http://localhost:9300", true},
		{"loopback-ip-dev-port", "http://127.0.0.1:9000", true},
		{"loopback-ip-alt-port", "http://127.0.0.1:9300", true},
		{"unrelated-origin", "http://example.com", false},
		{"localhost-wrong-port", "http://localhost:8080", false},
		{"third-party-site", "https://malicious-site.com", false},
		{"no-origin-header", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := CORSMiddleware(http.HandlerFunc(okHandler))

			req := httptest.NewRequest(http.MethodGet, "/vertices", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			got := w.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Errorf("origin %q: expected Access-Control-Allow-Origin echoed back, got %q", tc.origin, got)
			}
			if !tc.allowed && got != "" {
				t.Errorf("origin %q: expected no CORS header, got %q", tc.origin, got)
			}
		})
	}
}

func TestCORSMiddleware_PreflightShortCircuits(t *testing.T) {
	var reached bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	wrapped := CORSMiddleware(handler)

	req := httptest.NewRequest(http.MethodOptions, "/vertices", nil)
	req.Header.Set("Origin", "http://localhost:9000")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if reached {
		t.Error("wrapped handler must not run for an OPTIONS preflight")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", w.Code)
	}
	if w.Body.Len() > 0 {
		t.Error("preflight response should have no body")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight response missing Access-Control-Allow-Methods")
	}
	if w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("preflight response missing Access-Control-Allow-Headers")
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("expected Access-Control-Max-Age 86400, got %q", got)
	}
}

func TestCORSMiddleware_NonPreflightReachesHandler(t *testing.T) {
	var reached bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	wrapped := CORSMiddleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/vertices", nil)
	req.Header.Set("Origin", "http://localhost:9000")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if !reached {
		t.Error("expected the wrapped handler to run for a non-OPTIONS request")
	}
}

func TestCORSMiddleware_HeaderContents(t *testing.T) {
	wrapped := CORSMiddleware(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/vertices", nil)
	req.Header.Set("Origin", "http://localhost:9000")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
		if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), method) {
			t.Errorf("expected %s in Access-Control-Allow-Methods", method)
		}
	}
	for _, header := range []string{"Accept", "Content-Type", "Authorization"} {
		if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), header) {
			t.Errorf("expected %s in Access-Control-Allow-Headers", header)
		}
	}
}

func TestCORSHandler_WrapsBareHandlerFunc(t *testing.T) {
	wrapped := CORSHandler(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:9000")
	w := httptest.NewRecorder()
	wrapped(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:9000" {
		t.Errorf("expected echoed origin, got %q", got)
	}
}

func TestCORSHandler_PreflightDoesNotCallHandler(t *testing.T) {
	var reached bool
	wrapped := CORSHandler(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:9000")
	w := httptest.NewRecorder()
	wrapped(w, req)

	if reached {
		t.Error("CORSHandler should short-circuit OPTIONS before calling the wrapped func")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestNewCORSMux(t *testing.T) {
	mux := NewCORSMux()
	if mux == nil {
		t.Fatal("expected a non-nil CORSMux")
	}
	if mux.mux == nil {
		t.Error("expected the inner ServeMux to be initialized")
	}
}

func TestCORSMux_RoutesThroughHandleFuncAndHandle(t *testing.T) {
	mux := NewCORSMux()

	var funcCalled, handleCalled bool
	mux.HandleFunc("/wire", func(w http.ResponseWriter, r *http.Request) {
		funcCalled = true
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/wire", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Origin", "http://localhost:9000")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:9000" {
			t.Errorf("%s: expected CORS header on the mux response, got %q", path, got)
		}
	}
	if !funcCalled {
		t.Error("expected the HandleFunc-registered route to run")
	}
	if !handleCalled {
		t.Error("expected the Handle-registered route to run")
	}
}

func TestCORSMux_PreflightNeverReachesRoutes(t *testing.T) {
	mux := NewCORSMux()
	mux.HandleFunc("/wire", func(w http.ResponseWriter, r *http.Request) {
		t.Error("route handler must not run for an OPTIONS preflight")
	})

	req := httptest.NewRequest(http.MethodOptions, "/wire", nil)
	req.Header.Set("Origin", "http://localhost:9000")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", w.Code)
	}
}

// TestCORSMux_AcceptsAnyLocalOrigin is the key behavioral difference from
// CORSMiddleware/CORSHandler: any localhost or 127.0.0.1 port is allowed,
// not just the fixed dev-frontend ports.
func TestCORSMux_AcceptsAnyLocalOrigin(t *testing.T) {
	mux := NewCORSMux()
	mux.HandleFunc("/vertices", okHandler)

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:9000", true},
		{"http://localhost:9300", true},
		{"http://localhost:54321", true}, // arbitrary dev-server port
		{"http://127.0.0.1:9000", true},
		{"http://127.0.0.1:3000", true},
		{"http://example.com", false},
		{"https://localhost.evil.com", false},
	}

	for _, tc := range cases {
		t.Run(tc.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/vertices", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			got := w.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Errorf("origin %q: expected CORS header echoed back, got %q", tc.origin, got)
			}
			if !tc.allowed && got != "" {
				t.Errorf("origin %q: expected no CORS header, got %q", tc.origin, got)
			}
		})
	}
}
