// Package ui embeds the pages the emulator serves itself: the mock login
// form, the login-complete redirect and the default error pages.
package ui

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Template names.
const (
	TemplateComplete = "complete.html"
	TemplateError    = "error.html"
)

var headClose = regexp.MustCompile(`(?i)</head>`)

// Pages renders the embedded pages.
type Pages struct {
	tmpl     *template.Template
	mockPage []byte
}

// CompleteData feeds complete.html.
type CompleteData struct {
	RedirectURI string
}

// ErrorData feeds error.html.
type ErrorData struct {
	Status  int
	Title   string
	Message string
}

// LoadTemplates loads all HTML templates from embedded filesystem
func LoadTemplates() (*template.Template, error) {
	tmpl := template.New("")

	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) != ".html" {
			continue
		}

		content, err := fs.ReadFile(templatesFS, "templates/"+name)
		if err != nil {
			return nil, err
		}

		if _, err = tmpl.New(name).Parse(string(content)); err != nil {
			return nil, err
		}
	}

	return tmpl, nil
}

// Load parses every embedded page.
func Load() (*Pages, error) {
	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	mock, err := fs.ReadFile(staticFS, "static/auth.html")
	if err != nil {
		return nil, err
	}
	return &Pages{tmpl: tmpl, mockPage: mock}, nil
}

// MustLoad loads pages or panics
func MustLoad() *Pages {
	p, err := Load()
	if err != nil {
		panic(err)
	}
	return p
}

// MockLogin returns the mock login form. The URL the browser originally
// asked for is passed to the page in meta tags, since a rewrite may have
// changed what the page sees in window.location.
func (p *Pages) MockLogin(originalURL string) []byte {
	if originalURL == "" {
		return bytes.Clone(p.mockPage)
	}

	path, search, hasSearch := strings.Cut(originalURL, "?")
	tags := `<meta name="swa:originalPath" content="` + html.EscapeString(path) + `">`
	if hasSearch && search != "" {
		tags += `<meta name="swa:originalSearch" content="?` + html.EscapeString(search) + `">`
	}

	loc := headClose.FindIndex(p.mockPage)
	if loc == nil {
		return bytes.Clone(p.mockPage)
	}
	out := make([]byte, 0, len(p.mockPage)+len(tags))
	out = append(out, p.mockPage[:loc[0]]...)
	out = append(out, tags...)
	out = append(out, p.mockPage[loc[0]:]...)
	return out
}

// Complete renders the auto-redirecting page shown after POST /.auth/complete.
func (p *Pages) Complete(redirectURI string) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, TemplateComplete, CompleteData{RedirectURI: redirectURI}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var errorMessages = map[int]string{
	http.StatusUnauthorized:     "You need to be logged in to see this page.",
	http.StatusForbidden:        "You do not have permission to view this page.",
	http.StatusNotFound:         "The page you are looking for does not exist.",
	http.StatusMethodNotAllowed: "This method is not allowed for the requested resource.",
}

// ErrorPage renders a built-in error page such as "/404.html". Unknown pages
// fall back to the 404 page.
func (p *Pages) ErrorPage(page string) ([]byte, error) {
	status := http.StatusNotFound
	switch strings.TrimPrefix(page, "/") {
	case "401.html":
		status = http.StatusUnauthorized
	case "403.html":
		status = http.StatusForbidden
	case "405.html":
		status = http.StatusMethodNotAllowed
	}
	return p.ErrorStatus(status)
}

// ErrorStatus renders the built-in page for status.
func (p *Pages) ErrorStatus(status int) ([]byte, error) {
	msg, ok := errorMessages[status]
	if !ok {
		msg = http.StatusText(status)
	}
	var buf bytes.Buffer
	err := p.tmpl.ExecuteTemplate(&buf, TemplateError, ErrorData{
		Status:  status,
		Title:   http.StatusText(status),
		Message: msg,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
