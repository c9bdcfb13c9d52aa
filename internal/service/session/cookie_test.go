package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOps_SetAndDelete(t *testing.T) {
	var ops Ops

	ops.Set(CookieOp{Name: "a", Value: "1", Path: "/"})
	ops.Delete("b")
	require.Equal(t, 2, ops.Len())

	list := ops.List()
	assert.Equal(t, "a", list[0].Name)
	assert.False(t, list[0].Delete)
	assert.Equal(t, "b", list[1].Name)
	assert.True(t, list[1].Delete)
}

func TestOps_LastWriteWins(t *testing.T) {
	var ops Ops

	ops.Set(CookieOp{Name: AuthCookieName, Value: "v1"})
	ops.Delete(AuthCookieName)
	require.Equal(t, 1, ops.Len())
	assert.True(t, ops.List()[0].Delete)

	ops.Set(CookieOp{Name: AuthCookieName, Value: "v2"})
	require.Equal(t, 1, ops.Len())
	assert.Equal(t, "v2", ops.List()[0].Value)
	assert.False(t, ops.List()[0].Delete)
}

func TestOps_Merge(t *testing.T) {
	var a, b Ops
	a.Set(CookieOp{Name: "x", Value: "1"})
	b.Set(CookieOp{Name: "x", Value: "2"})
	b.Delete("y")

	a.Merge(&b)
	a.Merge(nil)

	require.Equal(t, 2, a.Len())
	assert.Equal(t, "2", a.List()[0].Value)
}

func TestOps_Apply(t *testing.T) {
	var ops Ops
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	ops.Set(CookieOp{Name: "keep", Value: "abc+/=", Path: "/", Expires: expires, Secure: true, HTTPOnly: true})
	ops.Delete("gone")

	rec := httptest.NewRecorder()
	ops.Apply(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	assert.Equal(t, "keep", cookies[0].Name)
	assert.Equal(t, "abc+/=", cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, expires.Equal(cookies[0].Expires))

	assert.Equal(t, "gone", cookies[1].Name)
	assert.Equal(t, "deleted", cookies[1].Value)
	assert.Equal(t, "/", cookies[1].Path)
	assert.True(t, cookies[1].Expires.Before(time.Unix(1, 0)))
}

func TestOps_NilSafe(t *testing.T) {
	var ops *Ops
	assert.Equal(t, 0, ops.Len())
	assert.Nil(t, ops.List())
	assert.NotPanics(t, func() { ops.Apply(httptest.NewRecorder()) })
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, parseSameSite("strict"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("Lax"))
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("none"))
	assert.Equal(t, http.SameSite(0), parseSameSite(""))
}
