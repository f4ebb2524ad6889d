// Package web is the landing site's HTTP surface: the page itself, static
// assets, crawler files, health probes and the lead form endpoint.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"leadbot/pkg/logx"
)

// Deliverer forwards a formatted lead notification. *telegram.Client
// implements it.
type Deliverer interface {
	SendMessage(ctx context.Context, text string) error
}

type Options struct {
	// SiteLabel is the source shown in lead messages and page titles.
	SiteLabel string
	// PublicURL is the canonical site root used by robots.txt and sitemap.xml.
	PublicURL string
	// StaticDir overrides the embedded /static/ assets.
	StaticDir string
	// SitemapLastMod is the <lastmod> of the landing page (YYYY-MM-DD).
	SitemapLastMod string
	// Now stamps lead messages and /ping; defaults to time.Now in UTC.
	Now func() time.Time
}

type Server struct {
	opts     Options
	delivery Deliverer
	log      logx.Logger

	landing *template.Template
	static  http.Handler
}

func NewServer(opts Options, delivery Deliverer, log logx.Logger) (*Server, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.SitemapLastMod == "" {
		opts.SitemapLastMod = "2025-12-21"
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")

	tmpl, err := template.ParseFS(assets, "assets/templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse landing template: %w", err)
	}

	var static http.Handler
	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		static = http.FileServer(http.Dir(dir))
	} else {
		sub, err := fs.Sub(assets, "assets/static")
		if err != nil {
			return nil, err
		}
		static = http.FileServer(http.FS(sub))
	}

	return &Server{
		opts:     opts,
		delivery: delivery,
		log:      log,
		landing:  tmpl,
		static:   http.StripPrefix("/static/", static),
	}, nil
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /tg-lead", s.handleLead)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.Handle("GET /static/", s.static)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)
	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	return s.recoverer(s.requestLog(mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
