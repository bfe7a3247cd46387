// Package api provides the small local HTTP surface this module exposes:
// CORS-wrapped handlers for a browser-based frontend and a health endpoint.
// The websocket upgrade for component G's wire duplex lives in package wire.
package api

import (
	"encoding/json"
	"net/http"
)

var allowedOrigins = []string{
	"http://localhost:9000",
	"http://localhost:9300",
	"http://127.0.0.1:9000",
	"http://127.0.0.1:9300",
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range allowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")
}

// CORSMiddleware wraps handler, adding CORS headers for known frontend
// origins and short-circuiting preflight OPTIONS requests.
func CORSMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isAllowedOrigin(origin) {
			setCORSHeaders(w, origin)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// CORSHandler is CORSMiddleware for a bare http.HandlerFunc, used when
// registering routes directly on a ServeMux.
func CORSHandler(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isAllowedOrigin(origin) {
			setCORSHeaders(w, origin)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}
}

// CORSMux is a ServeMux that sets CORS headers and short-circuits preflight
// requests in its own ServeHTTP for every route and, unlike CORSMiddleware,
// accepts any localhost/127.0.0.1 origin — convenient for a locally-run dev
// frontend on an arbitrary port.
type CORSMux struct {
	mux *http.ServeMux
}

// NewCORSMux constructs an empty CORSMux.
func NewCORSMux() *CORSMux {
	return &CORSMux{mux: http.NewServeMux()}
}

// HandleFunc registers a handler function for pattern; CORS is applied by
// ServeHTTP.
func (m *CORSMux) HandleFunc(pattern string, handler http.HandlerFunc) {
	m.mux.HandleFunc(pattern, handler)
}

// Handle registers a handler for pattern; CORS is applied by ServeHTTP.
func (m *CORSMux) Handle(pattern string, handler http.Handler) {
	m.mux.Handle(pattern, handler)
}

func (m *CORSMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if isLocalOrigin(origin) {
		setCORSHeaders(w, origin)
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	m.mux.ServeHTTP(w, r)
}

func isLocalOrigin(origin string) bool {
	return hasAnyPrefix(origin, "http://localhost:", "http://127.0.0.1:")
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
