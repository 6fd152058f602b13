package server

import (
	"net/http"
	"sync"
)

// Mux routes API requests. It wraps [http.ServeMux] with a middleware chain
// and per-route method filtering that answers in the JSON error envelope.
type Mux struct {
	routes *http.ServeMux
	chain  []Middleware

	once    sync.Once
	wrapped http.Handler
}

func NewMux() *Mux {
	return &Mux{routes: http.NewServeMux()}
}

// Use appends middleware to the chain. The chain wraps the whole mux, so
// middleware also sees requests that end in 404 or 405. Must be called
// before the mux serves its first request.
func (m *Mux) Use(middleware ...Middleware) {
	m.chain = append(m.chain, middleware...)
}

// Handle registers handler for path, answering 405 for any other method.
func (m *Mux) Handle(method, path string, handler http.Handler) {
	m.routes.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.Header().Set("Allow", method)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		handler.ServeHTTP(w, req)
	})
}

// Mount registers a [Handler] under every path it reports.
func (m *Mux) Mount(handler Handler) {
	for _, route := range handler.Routes() {
		m.routes.Handle(route, handler)
	}
}

// ServeHTTP builds the middleware chain on first use, innermost first so
// earlier Use calls run earlier.
func (m *Mux) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	m.once.Do(func() {
		m.wrapped = http.Handler(m.routes)
		for i := len(m.chain) - 1; i >= 0; i-- {
			m.wrapped = m.chain[i](m.wrapped)
		}
	})
	m.wrapped.ServeHTTP(w, req)
}
