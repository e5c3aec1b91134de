package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/crowddrop/go/internal/crowddrop/gateway"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(port string, service *gateway.Service, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	// overlays run inside the streaming software's browser source
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			// the websocket upgrade logs its own lifecycle
			if r.URL.Path == "/ws" || r.URL.Path == "/ws/" {
				return
			}
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("http request")
		})(c.Handler(mux)),
	)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
