package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/handler"
	"github.com/dzerik/swa-emulator/internal/routing"
	"github.com/dzerik/swa-emulator/internal/service/content"
	"github.com/dzerik/swa-emulator/internal/service/crypto"
	"github.com/dzerik/swa-emulator/internal/service/idp"
	"github.com/dzerik/swa-emulator/internal/service/metrics"
	"github.com/dzerik/swa-emulator/internal/service/security"
	"github.com/dzerik/swa-emulator/internal/service/session"
	"github.com/dzerik/swa-emulator/internal/service/state"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
	"github.com/dzerik/swa-emulator/internal/ui"
	"github.com/dzerik/swa-emulator/pkg/logger"
	"github.com/dzerik/swa-emulator/pkg/resilience/circuitbreaker"
	"github.com/dzerik/swa-emulator/pkg/resilience/ratelimit"
	"github.com/dzerik/swa-emulator/pkg/tracing"
)

// devServerPoll is how often startup probes a dev server that is not up yet.
const devServerPoll = 500 * time.Millisecond

// app owns every long-lived component of a running emulator.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	tracer   *tracing.TracerProvider
	configs  *swaconfig.Holder
	nonces   state.Store
	health   *handler.HealthHandler
	server   *http.Server
	admin    *http.Server
	warnings []security.Warning
}

// newApp wires the emulator from its settings.
func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics, tp *tracing.TracerProvider) (*app, error) {
	keys, err := loadKeys(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare cookie keys: %w", err)
	}
	codec, err := crypto.NewCodec(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie codec: %w", err)
	}
	sessions := session.NewManager(codec, &cfg.Auth.Cookie)

	bearer, err := crypto.NewBearerMinter(keys.Signing, cfg.PublicOrigin(), cfg.Auth.BearerTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create bearer minter: %w", err)
	}

	nonces, err := state.New(cfg.Auth.NonceStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create nonce store: %w", err)
	}
	logger.Info("nonce store created", zap.String("type", nonces.Name()))

	a := &app{cfg: cfg, metrics: m, tracer: tp, nonces: nonces}
	if err := a.build(ctx, sessions, bearer); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, sessions *session.Manager, bearer *crypto.BearerMinter) error {
	cfg := a.cfg
	devServer := cfg.App.IsDevServer()

	var root *content.Root
	if devServer {
		if err := waitForDevServer(ctx, cfg.App.OutputLocation, cfg.App.DevServerTimeout); err != nil {
			return err
		}
		logger.Info("dev server is up", zap.String("url", cfg.App.OutputLocation))
	} else {
		var err error
		root, err = content.NewRoot(cfg.App.OutputLocation, content.Options{
			CacheSize: cfg.App.FileCache.Size,
			CacheTTL:  cfg.App.FileCache.TTL,
		})
		if err != nil {
			return fmt.Errorf("failed to open content root: %w", err)
		}
	}

	site, err := swaconfig.LoadDir(cfg.App.SearchLocation())
	if err != nil {
		return fmt.Errorf("failed to load routing configuration: %w", err)
	}
	logger.Info("routing configuration loaded",
		zap.String("path", site.Path),
		zap.Bool("legacy", site.IsLegacy),
		zap.Int("routes", len(site.Routes)),
	)
	a.warnings = checkSecurity(cfg, site)

	a.configs = swaconfig.NewHolder(cfg.App.SearchLocation(), site)
	a.configs.OnReload(func(_ *swaconfig.Config, err error) {
		if root != nil {
			root.Purge()
		}
		if a.metrics != nil {
			a.metrics.RecordConfigReload(err)
		}
	})

	breakers := circuitbreaker.NewManager(cfg.Resilience.CircuitBreaker)
	idpOpts := idp.Options{
		RedirectBase: cfg.PublicOrigin(),
		Endpoints:    cfg.Auth.Providers,
		Timeout:      cfg.Auth.ProviderTimeout,
		Breakers:     breakers,
	}
	if a.metrics != nil {
		idpOpts.Metrics = a.metrics
	}

	engineOpts := routing.Options{Protocol: cfg.Protocol(), DevServer: devServer}
	if cfg.API.URI != "" {
		engineOpts.APIPrefix = cfg.API.Prefix
	}
	if cfg.API.DataAPIURI != "" {
		engineOpts.DataAPIPrefix = cfg.API.DataAPIPrefix
	}
	var files routing.FileChecker
	if root != nil {
		files = root
	}
	engine := routing.NewEngine(engineOpts, files, sessions)

	proxyCfg := handler.ProxyConfig{
		APIURI:     cfg.API.URI,
		DataAPIURI: cfg.API.DataAPIURI,
		Sessions:   sessions,
		Bearer:     bearer,
	}
	if devServer {
		proxyCfg.DevServerURI = cfg.App.OutputLocation
	}
	proxy, err := handler.NewProxy(proxyCfg)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	pages, err := ui.Load()
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}

	authOpts := []handler.AuthHandlerOption{
		handler.WithIdPClient(idp.NewClient(idpOpts)),
		handler.WithNonceStore(a.nonces),
		handler.WithNonceTTL(cfg.Auth.NonceTTL),
		handler.WithProtocol(cfg.Protocol()),
		handler.WithAPIURI(cfg.API.URI),
	}
	dispatcherCfg := handler.DispatcherConfig{
		Engine:   engine,
		Configs:  a.configs,
		Content:  root,
		Pages:    pages,
		Proxy:    proxy,
		Compress: cfg.App.Compress,
	}
	if a.metrics != nil {
		authOpts = append(authOpts, handler.WithAuthMetrics(a.metrics))
		dispatcherCfg.Metrics = a.metrics
	}
	dispatcherCfg.Auth = handler.NewAuthHandler(sessions, pages, authOpts...)

	var limiter *ratelimit.Limiter
	if cfg.Auth.RateLimit.Enabled {
		limiter, err = ratelimit.NewLimiter(cfg.Auth.RateLimit)
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		logger.Info("rate limiting enabled", zap.String("rate", cfg.Auth.RateLimit.Rate))
	}

	a.health = handler.NewHealthHandler(Version)
	if root != nil {
		a.health.AddCheck("content", func(context.Context) error {
			_, err := os.Stat(root.Dir())
			return err
		})
	} else {
		a.health.AddCheck("dev_server", func(ctx context.Context) error {
			return probe(ctx, tracing.Client(&http.Client{}), cfg.App.OutputLocation)
		})
	}

	router := SetupRouter(&RouterDeps{
		Config:     cfg,
		Metrics:    a.metrics,
		Tracer:     a.tracer,
		Limiter:    limiter,
		Dispatcher: handler.NewDispatcher(dispatcherCfg),
	})
	a.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	if addr := cfg.AdminAddress(); addr != "" {
		a.admin = &http.Server{
			Addr: addr,
			Handler: SetupAdminRouter(&AdminDeps{
				Config:   cfg,
				Metrics:  a.metrics,
				Health:   a.health,
				Configs:  a.configs,
				Breakers: breakers,
				Warnings: a.warnings,
			}),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
	}
	return nil
}

// run serves until ctx is cancelled or a listener fails.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listen(a.server, a.cfg.Server.TLS)
	})
	if a.admin != nil {
		g.Go(func() error {
			return listen(a.admin, config.TLSConfig{})
		})
	}
	if a.cfg.App.Watch {
		g.Go(func() error {
			return a.configs.Watch(gctx)
		})
	}

	a.health.SetReady(true)
	logger.Info("emulator is ready", zap.String("url", a.cfg.PublicOrigin()))

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

// shutdown stops both listeners and flushes traces.
func (a *app) shutdown() error {
	logger.Info("shutting down server...")
	a.health.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	logger.Info("server stopped")
	return errors.Join(errs...)
}

// close releases resources that outlive the listeners.
func (a *app) close() {
	if a.nonces == nil {
		return
	}
	if err := a.nonces.Close(); err != nil {
		logger.Warn("failed to close nonce store", zap.Error(err))
	}
}

// listen serves srv until it is shut down.
func listen(srv *http.Server, tls config.TLSConfig) error {
	logger.Info("starting HTTP server", zap.String("addr", srv.Addr), zap.Bool("tls", tls.Enabled))

	var err error
	if tls.Enabled {
		err = srv.ListenAndServeTLS(tls.Cert, tls.Key)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

// loadKeys decodes the configured cookie keys and generates the missing ones.
func loadKeys(auth *config.AuthConfig) (crypto.Keys, error) {
	keys, err := crypto.GenerateKeys()
	if err != nil {
		return crypto.Keys{}, err
	}
	if auth.EncryptionKey != "" {
		keys.Encryption = crypto.DecodeKey(auth.EncryptionKey)
	}
	if auth.SigningKey != "" {
		keys.Signing = crypto.DecodeKey(auth.SigningKey)
	}
	if auth.StateSalt != "" {
		keys.StateSalt = crypto.DecodeKey(auth.StateSalt)
	}
	return keys, nil
}

// waitForDevServer blocks until the dev server answers or timeout elapses.
func waitForDevServer(ctx context.Context, uri string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := tracing.Client(&http.Client{Timeout: 2 * time.Second})
	ticker := time.NewTicker(devServerPoll)
	defer ticker.Stop()

	logger.Info("waiting for dev server", zap.String("url", uri), zap.Duration("timeout", timeout))
	for {
		if err := probe(ctx, client, uri); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("dev server %s did not answer within %s", uri, timeout)
		case <-ticker.C:
		}
	}
}

// probe reports whether anything answers HTTP at uri.
func probe(ctx context.Context, client *http.Client, uri string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// initTracing initializes OpenTelemetry tracing if enabled.
func initTracing(cfg *config.Config) *tracing.TracerProvider {
	if !cfg.Observability.Tracing.Enabled {
		return nil
	}

	tracingCfg := tracing.Config{
		Enabled:        true,
		ServiceName:    tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    getEnvironment(cfg),
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		Protocol:       cfg.Observability.Tracing.Protocol,
		Insecure:       cfg.Observability.Tracing.Insecure,
		SamplingRatio:  cfg.Observability.Tracing.SamplingRatio,
		Headers:        cfg.Observability.Tracing.Headers,
	}

	tp, err := tracing.Init(context.Background(), tracingCfg)
	if err != nil {
		logger.Error("failed to initialize tracing", zap.Error(err))
		return nil
	}

	logger.Info("tracing initialized",
		zap.String("endpoint", tracingCfg.Endpoint),
		zap.String("protocol", tracingCfg.Protocol),
	)

	return tp
}
