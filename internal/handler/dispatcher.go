package handler

import (
	"bytes"
	"io"
	"io/fs"
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/dzerik/swa-emulator/internal/routing"
	"github.com/dzerik/swa-emulator/internal/service/content"
	"github.com/dzerik/swa-emulator/internal/service/metrics"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
	"github.com/dzerik/swa-emulator/internal/ui"
	"github.com/dzerik/swa-emulator/pkg/logger"
	"github.com/dzerik/swa-emulator/pkg/tracing"
)

// ConfigSource yields the active site configuration.
// *swaconfig.Holder satisfies it.
type ConfigSource interface {
	Current() *swaconfig.Config
}

// DecisionRecorder receives routing metrics. *metrics.Metrics satisfies it.
type DecisionRecorder interface {
	RecordDecision(kind string)
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Engine  *routing.Engine
	Configs ConfigSource
	// Content is nil in dev-server mode.
	Content *content.Root
	Pages   *ui.Pages
	Auth    *AuthHandler
	Proxy   *Proxy
	Metrics DecisionRecorder
	// Compress gzips static content for clients that accept it.
	Compress bool
}

// Dispatcher is the site handler: it asks the routing engine for a decision
// and carries it out.
type Dispatcher struct {
	engine  *routing.Engine
	configs ConfigSource
	content *content.Root
	pages   *ui.Pages
	auth    *AuthHandler
	proxy   *Proxy
	metrics DecisionRecorder
	static  http.Handler
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		engine:  cfg.Engine,
		configs: cfg.Configs,
		content: cfg.Content,
		pages:   cfg.Pages,
		auth:    cfg.Auth,
		proxy:   cfg.Proxy,
		metrics: cfg.Metrics,
	}
	d.static = http.HandlerFunc(d.serveStatic)
	if cfg.Compress {
		d.static = gzhttp.GzipHandler(d.static)
	}
	return d
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := d.config()
	dec := d.engine.Decide(r, cfg)

	kind := dec.Kind.String()
	metrics.SetKind(ctx, kind)
	if d.metrics != nil {
		d.metrics.RecordDecision(kind)
	}
	matched := ""
	if dec.Route != nil {
		matched = dec.Route.Route.Route
	}
	tracing.SetAttributes(ctx, tracing.WithRoute(kind, matched)...)
	logger.FromContext(ctx).Debug("route decision",
		logger.String("kind", kind),
		logger.String("matched", matched),
		logger.String("url", dec.URL),
		logger.String("file", dec.File),
		logger.Int("status", dec.Status),
		logger.String("authStatus", dec.AuthStatus.String()),
	)

	switch dec.Kind {
	case routing.KindStatic:
		d.static.ServeHTTP(w, r.WithContext(withDecision(ctx, dec)))
	case routing.KindErrorPage:
		d.serveErrorPage(w, r, dec)
	case routing.KindRedirect:
		w.Header().Set("Location", dec.Location)
		w.WriteHeader(dec.Status)
	case routing.KindEmpty:
		d.serveEmpty(w, r, dec)
	case routing.KindAuth:
		d.auth.Process(w, r, dec.URL, cfg)
	case routing.KindFunction:
		d.proxy.Serve(w, r, UpstreamAPI, dec)
	case routing.KindDataAPI:
		d.proxy.Serve(w, r, UpstreamDataAPI, dec)
	case routing.KindDevServer, routing.KindWebsocket:
		if !d.proxy.Has(UpstreamDevServer) {
			d.writeBuiltin(w, r, http.StatusNotFound)
			return
		}
		d.proxy.Serve(w, r, UpstreamDevServer, dec)
	default:
		d.writeBuiltin(w, r, http.StatusInternalServerError)
	}
}

func (d *Dispatcher) config() *swaconfig.Config {
	if d.configs == nil {
		return swaconfig.Empty()
	}
	if cfg := d.configs.Current(); cfg != nil {
		return cfg
	}
	return swaconfig.Empty()
}

// serveStatic streams the decided file from the content root. A plain 200
// goes through http.ServeContent for conditional and range requests.
func (d *Dispatcher) serveStatic(w http.ResponseWriter, r *http.Request) {
	dec, _ := decisionFrom(r.Context())
	if d.content == nil {
		d.writeBuiltin(w, r, http.StatusNotFound)
		return
	}

	hdr := w.Header()
	dec.Headers.Apply(hdr)
	if dec.ContentType != "" {
		hdr.Set("Content-Type", dec.ContentType)
	}

	status := dec.Status
	if status == 0 {
		status = http.StatusOK
	}
	d.serveFile(w, r, dec.File, status)
}

// serveFile writes file with status. Missing files fall back to the
// built-in 404 page.
func (d *Dispatcher) serveFile(w http.ResponseWriter, r *http.Request, file string, status int) {
	f, err := d.content.Open(file)
	if err != nil {
		logger.FromContext(r.Context()).Warn("failed to open content file",
			logger.String("file", file),
			logger.Err(err),
		)
		d.writeBuiltin(w, r, http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		d.writeBuiltin(w, r, http.StatusNotFound)
		return
	}

	if status == http.StatusOK {
		rs, err := readSeeker(f)
		if err != nil {
			d.writeBuiltin(w, r, http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
		return
	}

	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		io.Copy(w, f)
	}
}

func readSeeker(f fs.File) (io.ReadSeeker, error) {
	if rs, ok := f.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// serveErrorPage writes a custom page from the content root or one of the
// built-in pages.
func (d *Dispatcher) serveErrorPage(w http.ResponseWriter, r *http.Request, dec routing.Decision) {
	status := dec.Status
	if status == 0 {
		status = http.StatusNotFound
	}
	if dec.Builtin || d.content == nil {
		body, err := d.pages.ErrorPage(dec.File)
		if err != nil {
			http.Error(w, http.StatusText(status), status)
			return
		}
		d.writeHTML(w, r, status, body)
		return
	}

	w.Header().Set("Content-Type", dec.ContentType)
	d.serveFile(w, r, dec.File, status)
}

// serveEmpty answers HEAD, OPTIONS and 405 decisions. A 405 carries the
// built-in page.
func (d *Dispatcher) serveEmpty(w http.ResponseWriter, r *http.Request, dec routing.Decision) {
	hdr := w.Header()
	if dec.Allow != "" {
		hdr.Set("Allow", dec.Allow)
	}
	if dec.Status == http.StatusMethodNotAllowed {
		d.writeBuiltin(w, r, dec.Status)
		return
	}
	dec.Headers.Apply(hdr)
	if dec.ContentType != "" {
		hdr.Set("Content-Type", dec.ContentType)
	}
	w.WriteHeader(dec.Status)
}

func (d *Dispatcher) writeBuiltin(w http.ResponseWriter, r *http.Request, status int) {
	body, err := d.pages.ErrorStatus(status)
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	d.writeHTML(w, r, status, body)
}

func (d *Dispatcher) writeHTML(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(body)
	}
}
