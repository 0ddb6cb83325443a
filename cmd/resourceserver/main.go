// Command resourceserver hosts the OAuth resource-server middleware and
// delegation core behind a minimal HTTP server: a health endpoint, a
// Prometheus metrics endpoint, and an authenticated sample route that
// demonstrates the C10 middleware attaching a Session to the request
// context. Embedding applications typically mount pkg/authn.Middleware and
// pkg/core.CoreContext into their own router instead of running this
// binary directly; it exists mainly to prove the wiring end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stacklok/toolhive-authcore/pkg/authn"
	"github.com/stacklok/toolhive-authcore/pkg/core"
	"github.com/stacklok/toolhive-authcore/pkg/coreconfig"
	"github.com/stacklok/toolhive-authcore/pkg/delegation"
	"github.com/stacklok/toolhive-authcore/pkg/logger"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	addr := flag.String("addr", ":8443", "address to serve on")
	configPath := flag.String("config", "config.yaml", "path to the resource server config file")
	envPrefix := flag.String("env-prefix", "AUTHCORE", "prefix for environment-variable config overrides")
	realm := flag.String("realm", "resource-server", "WWW-Authenticate realm")
	resourceURL := flag.String("resource-url", "", "RFC 9728 protected resource metadata URL, if published")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *configPath, *envPrefix, *realm, *resourceURL); err != nil {
		logger.Errorf("resourceserver: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, configPath, envPrefix, realm, resourceURL string) error {
	mgr, err := coreconfig.NewManager(configPath, envPrefix)
	if err != nil {
		return err
	}

	// Delegation modules are supplied by the embedding application; this
	// binary runs with none registered, so delegation: routes return
	// ErrModuleNotFound until modules are wired in by a caller that links
	// against pkg/core directly.
	cc, err := core.Build(ctx, mgr, map[string]delegation.Module{}, http.DefaultClient)
	if err != nil {
		return err
	}

	r := newRouter(cc, realm, resourceURL)

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("starting http server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Infow("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cc *core.CoreContext, realm, resourceURL string) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
	)

	r.Get("/health", healthHandler(cc))
	r.Handle("/metrics", promhttp.Handler())

	authMW := authMiddleware(cc, realm, resourceURL)
	r.With(authMW).Get("/whoami", whoamiHandler())

	return r
}

func authMiddleware(cc *core.CoreContext, realm, resourceURL string) func(http.Handler) http.Handler {
	mw := authn.NewMiddleware(cc.AuthService, realm, resourceURL)
	return mw.Wrap
}

func healthHandler(cc *core.CoreContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, name := range cc.DelegationReg.List() {
			mod, ok := cc.DelegationReg.Get(name)
			if !ok || !mod.HealthCheck(r.Context()) {
				http.Error(w, "degraded: module "+name+" unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func whoamiHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			http.Error(w, "no session", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(sess.UserID + " (" + sess.PrimaryRole + ")"))
	}
}
