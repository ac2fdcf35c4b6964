package httpapi

import (
	"fmt"
	"net/http"
	"time"
)

// RouteRegistrar mounts a handler group on a mux.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// NewMux mounts every handler group on a fresh mux.
func NewMux(groups ...RouteRegistrar) *http.ServeMux {
	mux := http.NewServeMux()
	for _, g := range groups {
		g.RegisterRoutes(mux)
	}
	return mux
}

// NewServer builds the public HTTP server. Campaign and sync webhook runs are
// awaited inside the request, so there is no write timeout.
func NewServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
