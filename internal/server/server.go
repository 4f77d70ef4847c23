package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/ReviewGuide/internal/backend"
	"github.com/TobiSchelling/ReviewGuide/internal/config"
	"github.com/TobiSchelling/ReviewGuide/internal/database"
	"github.com/TobiSchelling/ReviewGuide/internal/logger"
	"github.com/TobiSchelling/ReviewGuide/internal/metrics"
	"github.com/TobiSchelling/ReviewGuide/internal/render"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
	"github.com/TobiSchelling/ReviewGuide/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the local web UI for running and browsing analyses.
type Server struct {
	db      *database.DB
	session *session.Session
	pages   map[string]*template.Template
	mux     *http.ServeMux

	mu      sync.Mutex
	gen     int
	current *session.State
	name    string
}

// New creates a new Server that runs retrievals through sess.
func New(db *database.DB, sess *session.Session) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":      renderMarkdown,
		"videoLink":     review.VideoLink,
		"highlightLink": review.HighlightLink,
		"guideLabel":    func(a database.Analysis) string { return render.GuideLabel(&a) },
		"productPath":   productPath,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/result.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "product.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, session: sess, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	s.mux.Handle("/metrics", metrics.Handler())

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/product/", s.handleProduct)
	s.mux.HandleFunc("/delete", s.handleDelete)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	analyses, err := s.db.GetAllAnalyses()
	if err != nil {
		logger.Log.WithError(err).Error("listing analyses")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	var current *retrievalView
	if s.current != nil {
		current = liveView(s.name, *s.current)
	}
	s.mu.Unlock()

	s.render(w, "index.html", map[string]any{
		"Current":  current,
		"Refresh":  current != nil && !current.Terminal,
		"Analyses": analyses,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	name := strings.TrimSpace(r.FormValue("product_name"))
	s.startRetrieval(name)
	http.Redirect(w, r, "/", http.StatusFound)
}

// startRetrieval runs a retrieval in the background. States of a superseded
// retrieval are dropped.
func (s *Server) startRetrieval(name string) {
	s.mu.Lock()
	states := s.session.Analyze(context.Background(), name)
	s.gen++
	gen := s.gen
	s.name = name
	s.current = nil
	s.mu.Unlock()

	go func() {
		for st := range states {
			s.mu.Lock()
			live := gen == s.gen
			if live {
				st := st
				s.current = &st
			}
			s.mu.Unlock()
			if !live {
				continue
			}
			if err := s.db.RecordState(st); err != nil {
				logger.WithProduct(name).WithError(err).Error("saving analysis")
			}
		}
	}()
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/product/")
	if name == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	analysis, err := s.db.GetAnalysis(name)
	if err != nil {
		logger.WithProduct(name).WithError(err).Error("loading analysis")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if analysis == nil {
		http.NotFound(w, r)
		return
	}

	view := storedView(analysis)
	s.mu.Lock()
	if cur := s.current; cur != nil && cur.Result != nil && cur.Result.ProductName == name && !cur.Terminal() {
		view.Refresh = true
	}
	s.mu.Unlock()

	s.render(w, "product.html", map[string]any{
		"View":    view,
		"Refresh": view.Refresh,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	name := strings.TrimSpace(r.FormValue("product_name"))
	if name != "" {
		if err := s.db.DeleteAnalysis(name); err != nil {
			logger.WithProduct(name).WithError(err).Error("deleting analysis")
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		logger.Log.Errorf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		logger.Log.Errorf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func productPath(name string) string {
	return "/product/" + url.PathEscape(name)
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, cfg *config.Config, port int) error {
	client := backend.NewClient(cfg.GetBaseURL(), cfg.Backend.RequestTimeout, cfg.Backend.RequestsPerMinute)
	srv, err := New(db, session.New(client, nil, cfg.PollerConfig()))
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	logger.Log.Infof("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
