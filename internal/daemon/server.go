package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jcdickinson/refdoc/internal/autodoc"
	"github.com/jcdickinson/refdoc/internal/build"
	"github.com/jcdickinson/refdoc/internal/cas"
	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/db"
	"github.com/jcdickinson/refdoc/internal/rpc"
	"github.com/jcdickinson/refdoc/internal/store"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	db         *db.DB
	pages      *cas.Store
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	// src and renderer are opened on first use and dropped by clear-cache
	// and at the start of every build.
	srcMu    sync.RWMutex
	src      *store.Dir
	renderer *autodoc.Renderer

	docCache    map[string]*autodoc.Document
	docCacheMu  sync.RWMutex
	renderGroup singleflight.Group
	buildGroup  singleflight.Group
}

func NewServer(cfg *config.Config, database *db.DB, pages *cas.Store, socketPath string) *Server {
	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	return &Server{
		db:         database,
		pages:      pages,
		cfg:        cfg,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
		docCache:   make(map[string]*autodoc.Document),
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Handler returns the daemon's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", s.withExpReset(s.handleRender))
	mux.HandleFunc("POST /build", s.withExpReset(s.handleBuild))
	mux.HandleFunc("GET /items", s.withExpReset(s.handleItems))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("daemon: db close error: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

// source returns the descriptor directory and a renderer over it, opening
// them if needed.
func (s *Server) source() (*store.Dir, *autodoc.Renderer, error) {
	s.srcMu.RLock()
	src, r := s.src, s.renderer
	s.srcMu.RUnlock()
	if src != nil {
		return src, r, nil
	}

	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	if s.src != nil {
		return s.src, s.renderer, nil
	}
	src, err := store.Open(s.cfg.Autodoc.Dir)
	if err != nil {
		return nil, nil, err
	}
	opts := s.cfg.RendererOptions()
	opts.OnUnresolved = func(err error) {
		log.Printf("daemon: %v", err)
	}
	s.src = src
	s.renderer = autodoc.NewRenderer(src, opts)
	log.Printf("daemon: opened %s (version %q, %d items)", s.cfg.Autodoc.Dir, src.Version(), len(src.Locators()))
	return s.src, s.renderer, nil
}

// locate maps a type name or locator to a locator in the index.
func locate(src *store.Dir, name string) (string, bool) {
	if strings.HasSuffix(name, ".json") {
		for _, loc := range src.Locators() {
			if loc == name {
				return loc, true
			}
		}
		return "", false
	}
	return src.Lookup(name)
}

func (s *Server) document(locator string) (*autodoc.Document, error) {
	s.docCacheMu.RLock()
	doc, ok := s.docCache[locator]
	s.docCacheMu.RUnlock()
	if ok {
		return doc, nil
	}

	v, err, _ := s.renderGroup.Do(locator, func() (interface{}, error) {
		src, r, err := s.source()
		if err != nil {
			return nil, err
		}
		info, err := src.Load(locator)
		if err != nil {
			return nil, err
		}
		doc, err := r.RenderDocument(info)
		if err != nil {
			return nil, err
		}
		s.docCacheMu.Lock()
		s.docCache[locator] = doc
		s.docCacheMu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*autodoc.Document), nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req rpc.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}

	src, _, err := s.source()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	locator, ok := locate(src, req.Name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("item %s not found in %s", req.Name, s.cfg.Autodoc.Dir))
		return
	}

	doc, err := s.document(locator)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, autodoc.ErrUnsupportedItemKind) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	resp := rpc.RenderResponse{
		Name:     strings.TrimSuffix(filepath.Base(locator), ".json"),
		Locator:  locator,
		Markdown: doc.Markdown,
	}
	for _, f := range doc.Fragments {
		resp.Fragments = append(resp.Fragments, f.Name)
	}
	if req.Fragment != "" {
		content, ok := doc.Fragment(req.Fragment)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("fragment #%s not found for %s", req.Fragment, req.Name))
			return
		}
		resp.Markdown = content
	}
	resp.ContentHash = cas.Hash(resp.Markdown)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req rpc.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = s.cfg.Build.OutputDir
	}

	includeHidden := req.IncludeHidden || s.cfg.Build.IncludeHidden
	// The run is shared, so one caller going away must not cancel it.
	ctx := context.WithoutCancel(r.Context())

	// Concurrent builds of the same tree and options share one run.
	v, err, _ := s.buildGroup.Do(buildKey(outDir, includeHidden), func() (interface{}, error) {
		// Descriptors may have been regenerated since they were loaded.
		s.clearMemory()
		src, _, err := s.source()
		if err != nil {
			return nil, err
		}
		var catalog build.Catalog
		if s.db != nil {
			catalog = s.db
		}
		b := build.New(src, s.pages, catalog, build.Options{
			OutputDir:     outDir,
			Workers:       s.cfg.Build.Workers,
			FrontMatter:   s.cfg.Build.FrontMatter,
			IncludeHidden: includeHidden,
			Renderer:      s.cfg.RendererOptions(),
		})
		log.Printf("daemon: building %s into %s", s.cfg.Autodoc.Dir, outDir)
		return b.Run(ctx)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, BuildResponse(v.(*build.Result)))
}

func buildKey(outDir string, includeHidden bool) string {
	return fmt.Sprintf("%s\x00%t", outDir, includeHidden)
}

// BuildResponse converts a build result to its wire form.
func BuildResponse(res *build.Result) rpc.BuildResponse {
	resp := rpc.BuildResponse{
		Version:    res.Version,
		Rendered:   res.Rendered,
		Unchanged:  res.Unchanged,
		Skipped:    res.Skipped,
		Pruned:     res.Pruned,
		Unresolved: res.Unresolved,
	}
	for _, err := range res.Failed {
		resp.Failed = append(resp.Failed, err.Error())
	}
	for _, l := range res.Dangling {
		resp.Dangling = append(resp.Dangling, l.String())
	}
	return resp
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	src, _, err := s.source()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := rpc.ItemsResponse{Version: src.Version()}
	for _, loc := range src.Locators() {
		info, err := src.Load(loc)
		if err != nil {
			log.Printf("daemon: %v", err)
			continue
		}
		resp.Items = append(resp.Items, rpc.ItemSummary{
			Name:     info.Name,
			Package:  info.Package,
			Category: info.Category,
			Kind:     string(info.Item.Kind),
			Hidden:   info.Hidden,
			Locator:  loc,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := rpc.StatusResponse{Dir: s.cfg.Autodoc.Dir}
	if src, _, err := s.source(); err == nil {
		resp.Version = src.Version()
		resp.Items = len(src.Locators())
	} else {
		log.Printf("daemon: status: %v", err)
	}

	if s.db != nil {
		last, err := s.db.LastBuild()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if last != nil {
			resp.LastBuild = &rpc.BuildStatus{
				IndexVersion: last.IndexVersion,
				StartedAt:    last.StartedAt,
				FinishedAt:   last.FinishedAt,
				Rendered:     last.Rendered,
				Unchanged:    last.Unchanged,
				Failed:       last.Failed,
			}
		}

		pages, err := s.db.ListPages()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, p := range pages {
			resp.Pages = append(resp.Pages, rpc.PageStatus{
				Name:        p.Name,
				Package:     p.Package,
				Kind:        p.Kind,
				Locator:     p.Locator,
				ContentHash: p.ContentHash,
				RenderedAt:  p.RenderedAt,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clearMemory() {
	s.srcMu.Lock()
	s.src, s.renderer = nil, nil
	s.srcMu.Unlock()

	s.docCacheMu.Lock()
	s.docCache = make(map[string]*autodoc.Document)
	s.docCacheMu.Unlock()
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req rpc.ClearCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.clearMemory()
	log.Printf("daemon: render cache cleared")

	if req.All {
		if s.pages != nil {
			if err := s.pages.Clear(); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if s.db != nil {
			if err := s.db.Clear(); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		log.Printf("daemon: page store and catalog cleared")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
