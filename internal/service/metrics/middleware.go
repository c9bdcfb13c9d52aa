package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// KindOther labels requests that never reached the dispatcher.
const KindOther = "other"

type kindKey struct{}

type kindSlot struct {
	kind string
}

// SetKind labels the current request with its dispatch kind. It is a no-op
// outside Middleware.
func SetKind(ctx context.Context, kind string) {
	if s, ok := ctx.Value(kindKey{}).(*kindSlot); ok {
		s.kind = kind
	}
}

// Middleware returns an HTTP middleware that records Prometheus metrics
// for each request. Requests are labelled by dispatch kind rather than path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.InFlightInc()
		defer m.InFlightDec()

		slot := &kindSlot{kind: KindOther}
		r = r.WithContext(context.WithValue(r.Context(), kindKey{}, slot))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, slot.kind, strconv.Itoa(status), time.Since(start).Seconds())
	})
}
