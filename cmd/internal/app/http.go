package app

import (
	"context"
	"net/http"
	"time"

	authapi "sessiond/cmd/internal/auth/api"
	"sessiond/cmd/internal/auth/session"
)

// pinger is satisfied by the revocation store and the principal directory.
type pinger interface {
	Ping(ctx context.Context) error
}

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	store session.Store,
	dir pinger,
	metrics *Metrics,
	auth *authapi.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			log.Info("readyz.store.not_ready", "err", err)
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		if dir != nil {
			if err := dir.Ping(ctx); err != nil {
				log.Info("readyz.directory.not_ready", "err", err)
				http.Error(w, "directory not ready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	if auth != nil {
		auth.Register(mux)
	}
}

// wrapHTTP applies the middleware chain. WithRequestID runs first so every
// log line carries the id.
func wrapHTTP(h http.Handler, cfg Config, log Logger) http.Handler {
	h = WithCORS(h, cfg, log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, log)
	return WithRequestID(h)
}
