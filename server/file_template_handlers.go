package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"
	layoutTemplate  = "layout.html"
)

var templateFuncs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"since": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return humanize.Time(t)
	},
	"percent": func(n int) string { return fmt.Sprintf("%d%%", n) },
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

func mustParseTemplate(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

type pageData map[string]interface{}

// page seeds the data every template expects.
func (s *Server) page(r *http.Request, title string) pageData {
	q := r.URL.Query()
	data := pageData{
		"AppName": s.config.GetAppName(),
		"Title":   title,
		"Error":   q.Get("error"),
		"Message": q.Get("message"),
		"Errors":  auth.FieldErrors{},
		"Values":  map[string]string{},
	}
	if d, ok := auth.SessionFrom(r.Context()); ok {
		data["Session"] = d
	}
	return data
}

// render executes tmpl into a buffer so a template error never leaves a
// half-written page.
func render(w http.ResponseWriter, tmpl *template.Template, status int, data pageData) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("failed to render template")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
