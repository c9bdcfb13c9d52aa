package session

import (
	"net/http"
	"strings"
	"time"
)

// Cookie names set by the emulator.
const (
	AuthCookieName        = "StaticWebAppsAuthCookie"
	AuthContextCookieName = "StaticWebAppsAuthContextCookie"
)

// deletedValue is written into cookies being removed.
const deletedValue = "deleted"

// deletedExpiry is one millisecond past the epoch.
var deletedExpiry = time.UnixMilli(1).UTC()

// CookieOp is a pending Set-Cookie.
type CookieOp struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Delete   bool
}

// Cookie renders the operation as an http.Cookie.
func (op CookieOp) Cookie() *http.Cookie {
	c := &http.Cookie{
		Name:     op.Name,
		Value:    op.Value,
		Path:     op.Path,
		Domain:   op.Domain,
		Expires:  op.Expires,
		Secure:   op.Secure,
		HttpOnly: op.HTTPOnly,
		SameSite: op.SameSite,
	}
	if op.Delete {
		c.Value = deletedValue
		c.Expires = deletedExpiry
	}
	return c
}

// Ops accumulates cookie changes produced while handling a request.
// Handlers append to it and the HTTP boundary applies it once.
// A later operation on the same cookie name replaces an earlier one.
type Ops struct {
	ops []CookieOp
}

// Set queues a cookie to be written.
func (o *Ops) Set(op CookieOp) {
	op.Delete = false
	o.put(op)
}

// Delete queues removal of a cookie.
func (o *Ops) Delete(name string) {
	o.put(CookieOp{Name: name, Path: "/", Delete: true})
}

func (o *Ops) put(op CookieOp) {
	for i := range o.ops {
		if strings.EqualFold(o.ops[i].Name, op.Name) {
			o.ops[i] = op
			return
		}
	}
	o.ops = append(o.ops, op)
}

// List returns the queued operations in order.
func (o *Ops) List() []CookieOp {
	if o == nil {
		return nil
	}
	out := make([]CookieOp, len(o.ops))
	copy(out, o.ops)
	return out
}

// Len returns the number of queued operations.
func (o *Ops) Len() int {
	if o == nil {
		return 0
	}
	return len(o.ops)
}

// Merge appends all operations of other.
func (o *Ops) Merge(other *Ops) {
	if other == nil {
		return
	}
	for _, op := range other.ops {
		o.put(op)
	}
}

// Apply writes every queued operation as a Set-Cookie header.
func (o *Ops) Apply(w http.ResponseWriter) {
	if o == nil {
		return
	}
	for _, op := range o.ops {
		http.SetCookie(w, op.Cookie())
	}
}

// parseSameSite converts string to http.SameSite
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return 0
	}
}
