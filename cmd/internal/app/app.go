// Package app wires the sessiond runtime: config, logging, backends, HTTP
// routes and the background reaper.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sessiond/cmd/identity"
	authapi "sessiond/cmd/internal/auth/api"
	"sessiond/cmd/internal/auth/cookies"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"
	"sessiond/cmd/security/token"

	"golang.org/x/sync/errgroup"
)

// Settings groups the per-subsystem configuration New loads from the environment.
type Settings struct {
	Session  session.Config
	Password password.Config
	Cookies  cookies.Policy
	Auth     authapi.Config
}

// LoadSettings loads every subsystem config and applies the security policy.
func LoadSettings(cfg Config) (Settings, error) {
	sess, err := session.LoadConfigFromEnv()
	if err != nil {
		return Settings{}, fmt.Errorf("session config: %w", err)
	}
	pw, err := password.FromEnv()
	if err != nil {
		return Settings{}, fmt.Errorf("password config: %w", err)
	}
	s := Settings{
		Session:  sess,
		Password: pw,
		Cookies:  cookies.PolicyFromEnv(cfg.Production(), sess.RefreshTTL),
		Auth:     authapi.LoadConfigFromEnv(),
	}
	if err := ValidateSecurityConfig(cfg, s.Session, s.Cookies); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// App is the sessiond runtime: it owns the HTTP server, the revocation store
// and the reaper.
type App struct {
	cfg Config
	log Logger

	res     *resources
	store   session.Store
	dir     identity.Directory
	reaper  *session.Reaper
	handler http.Handler
}

// New constructs a fully wired App from config, logger and the environment.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	s, err := LoadSettings(cfg)
	if err != nil {
		return nil, err
	}
	return Build(context.Background(), cfg, s, log)
}

// Build wires an App from explicit settings.
func Build(ctx context.Context, cfg Config, s Settings, log Logger) (*App, error) {
	res, err := openResources(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, s, log, res)
	if err != nil {
		res.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg Config, s Settings, log Logger, res *resources) (*App, error) {
	store, err := newRevocationStore(cfg, s.Session, res)
	if err != nil {
		return nil, err
	}
	dir, err := newDirectory(ctx, cfg, s.Password, res, log)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Key:    s.Session.SigningKey,
		Issuer: s.Session.Issuer,
		Leeway: s.Session.Leeway,
	})
	if err != nil {
		return nil, err
	}
	transport, err := cookies.New(s.Cookies)
	if err != nil {
		return nil, err
	}

	var metrics *Metrics
	opts := []session.Option{
		session.WithLogger(log),
		session.WithPrincipalLookup(identity.Principals{Dir: dir}),
	}
	var hopts []authapi.HandlerOption
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
		opts = append(opts, session.WithMetrics(metrics))
		hopts = append(hopts, authapi.WithLoginMetrics(metrics))
	}

	authn := identity.NewAuthenticator(dir, s.Password,
		identity.WithLogger(log),
		identity.WithRehashOnLogin(true),
	)

	auth, err := authapi.NewHandler(log, s.Auth, authapi.Deps{
		Auth:        authn,
		Users:       dir,
		Issuer:      session.NewIssuer(s.Session, codec, store, opts...),
		Validator:   session.NewValidator(s.Session, codec, opts...),
		Coordinator: session.NewCoordinator(s.Session, codec, store, opts...),
		Cookies:     transport,
	}, hopts...)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, store, dir, metrics, auth)

	return &App{
		cfg:     cfg,
		log:     log,
		res:     res,
		store:   store,
		dir:     dir,
		reaper:  session.NewReaper(s.Session, store, codec.Now, log),
		handler: wrapHTTP(mux, cfg, log),
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs the reaper until ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.res.Close()

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", ln.Addr().String(),
		"store", a.cfg.StoreBackend,
		"auth", a.cfg.AuthBackend,
		"env", a.cfg.Env,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.reaper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
