package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		wantKind   Kind
		wantPrefix string
		wantExts   []string
		wantErr    error
	}{
		{name: "exact", raw: "/about", wantKind: KindExact},
		{name: "any", raw: "*", wantKind: KindAny},
		{name: "root wildcard", raw: "/*", wantKind: KindPrefix, wantPrefix: "/"},
		{name: "folder wildcard", raw: "/foo/*", wantKind: KindPrefix, wantPrefix: "/foo/"},
		{name: "partial segment wildcard", raw: "/foo*", wantKind: KindPrefix, wantPrefix: "/foo"},
		{name: "single extension", raw: "/images/*.png", wantKind: KindExtensionSet, wantPrefix: "/images/", wantExts: []string{"png"}},
		{name: "extension set", raw: "/*.{png,gif}", wantKind: KindExtensionSet, wantPrefix: "/", wantExts: []string{"png", "gif"}},
		{name: "extension set with stem", raw: "/assets/*.min.{js,css}", wantKind: KindExtensionSet, wantPrefix: "/assets/", wantExts: []string{"min.js", "min.css"}},
		{name: "empty", raw: "", wantErr: ErrEmptyPattern},
		{name: "double wildcard", raw: "/foo/*/bar/*", wantErr: ErrMultipleWildcards},
		{name: "mid path wildcard", raw: "/redirect/*/invalid", wantErr: ErrMisplacedWildcard},
		{name: "wildcard before text", raw: "/foo/*bar", wantErr: ErrMisplacedWildcard},
		{name: "unclosed brace", raw: "/*.{png,gif", wantErr: ErrUnbalancedBraces},
		{name: "unopened brace", raw: "/*.png,gif}", wantErr: ErrUnbalancedBraces},
		{name: "nested braces", raw: "/*.{png,{gif}}", wantErr: ErrUnbalancedBraces},
		{name: "empty alternative", raw: "/*.{png,}", wantErr: ErrEmptyExtension},
		{name: "empty extension", raw: "/*.", wantErr: ErrEmptyExtension},
		{name: "braces without wildcard", raw: "/{foo,bar}.json", wantErr: ErrUnexpectedBraceSet},
		{name: "braces before wildcard", raw: "/{a,b}/*", wantErr: ErrUnexpectedBraceSet},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.raw)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.wantErr)
				assert.False(t, p.Valid())
				assert.Equal(t, KindInvalid, p.Kind())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, p.Kind())
			assert.Equal(t, tc.wantPrefix, p.Prefix())
			if tc.wantExts != nil {
				assert.Equal(t, tc.wantExts, p.Extensions())
			}
			assert.Equal(t, tc.raw, p.Raw())
		})
	}
}

func TestMatch(t *testing.T) {
	testCases := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{name: "exact hit", pattern: "/about", path: "/about", want: true},
		{name: "exact miss", pattern: "/about", path: "/about/", want: false},
		{name: "any", pattern: "*", path: "/anything/at/all.txt", want: true},
		{name: "root wildcard", pattern: "/*", path: "/foo/bar", want: true},
		{name: "prefix hit", pattern: "/redirect/*", path: "/redirect/foo", want: true},
		{name: "prefix trailing slash", pattern: "/redirect/*", path: "/redirect/", want: true},
		{name: "prefix miss", pattern: "/redirect/*", path: "/redirects", want: false},
		{name: "png in set", pattern: "/*.{png,gif}", path: "/thing.png", want: true},
		{name: "gif in set", pattern: "/*.{png,gif}", path: "/nested/thing.gif", want: true},
		{name: "jpg not in set", pattern: "/*.{png,gif}", path: "/thing.jpg", want: false},
		{name: "single extension", pattern: "/images/*.jpg", path: "/images/a.jpg", want: true},
		{name: "single extension wrong folder", pattern: "/images/*.jpg", path: "/img/a.jpg", want: false},
		{name: "extension without dot", pattern: "/*.png", path: "/png", want: false},
		{name: "mid path wildcard never matches", pattern: "/redirect/*/invalid", path: "/redirect/foo/invalid", want: false},
		{name: "mid path wildcard never matches prefix", pattern: "/redirect/*/invalid", path: "/redirect/", want: false},
		{name: "double wildcard never matches", pattern: "/*/*", path: "/a/b", want: false},
		{name: "unbalanced never matches", pattern: "/*.{png", path: "/a.{png", want: false},
		{name: "case sensitive", pattern: "/About", path: "/about", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(tc.pattern, tc.path))
		})
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"*", "/", "/a/b", "/a/*", "/*.css", "/a/*.{jpg,jpeg,png}"}
	invalid := []string{"", "**", "/a/*/b", "/*.{a,b", "/a/*.x/y", "/*.{}"}

	for _, raw := range valid {
		t.Run("valid "+raw, func(t *testing.T) {
			assert.True(t, IsValid(raw))
		})
	}
	for _, raw := range invalid {
		t.Run("invalid "+raw, func(t *testing.T) {
			assert.False(t, IsValid(raw))
		})
	}
}

func TestPattern_HasWildcard(t *testing.T) {
	p, _ := Parse("/redirect/*/invalid")
	assert.True(t, p.HasWildcard())
	assert.False(t, p.Valid())

	assert.False(t, MustParse("/exact").HasWildcard())
	assert.True(t, MustParse("/a/*").HasWildcard())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("/a/*/b") })
}

func TestPattern_ZeroValue(t *testing.T) {
	var p Pattern
	assert.False(t, p.Valid())
	assert.False(t, p.Match(""))
	assert.Equal(t, "invalid()", p.String())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "exact", KindExact.String())
	assert.Equal(t, "any", KindAny.String())
	assert.Equal(t, "prefix", KindPrefix.String())
	assert.Equal(t, "extension-set", KindExtensionSet.String())
	assert.Equal(t, "invalid", KindInvalid.String())
}
