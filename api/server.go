package api

import (
	"net/http"
	"time"
)

// NewServer wraps the router in an http.Server with conservative timeouts.
// WriteTimeout stays unset so event streams are not cut off; handlers that
// stream set their own deadlines.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
