package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jcdickinson/refdoc/internal/autodoc"
	"github.com/jcdickinson/refdoc/internal/cas"
	"github.com/jcdickinson/refdoc/internal/db"
	md "github.com/jcdickinson/refdoc/internal/markdown"
	"golang.org/x/sync/errgroup"
)

// Source is a descriptor collection that can be enumerated.
type Source interface {
	autodoc.Store
	Locators() []string
	Version() string
}

// Catalog records what each build produced. *db.DB implements it.
type Catalog interface {
	ListPages() ([]db.Page, error)
	UpsertPage(p *db.Page) (bool, error)
	PrunePages(keep []string) ([]string, error)
	StartBuild(indexVersion string) (int, error)
	FinishBuild(id, rendered, unchanged, failed int) error
}

type Options struct {
	OutputDir     string
	Workers       int
	FrontMatter   bool
	IncludeHidden bool
	Renderer      autodoc.Options
}

// Builder renders every descriptor of a Source into OutputDir. Pages and
// Catalog are optional; without a catalog, pages are compared against the
// files already on disk.
type Builder struct {
	src     Source
	pages   *cas.Store
	catalog Catalog
	opts    Options
}

func New(src Source, pages *cas.Store, catalog Catalog, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Renderer.LinkPrefix == "" {
		opts.Renderer.LinkPrefix = autodoc.DefaultLinkPrefix
	}
	return &Builder{src: src, pages: pages, catalog: catalog, opts: opts}
}

// Link is a reference from a rendered page to a page the build did not
// produce.
type Link struct {
	Page   string
	Target string
}

func (l Link) String() string {
	return l.Page + " -> " + l.Target
}

type Result struct {
	Version    string
	Rendered   []string
	Unchanged  []string
	Skipped    []string
	Pruned     []string
	Failed     []error
	Unresolved []string
	Dangling   []Link
}

type status int

const (
	statusFailed status = iota
	statusSkipped
	statusUnchanged
	statusRendered
)

type outcome struct {
	status status
	page   *db.Page
	links  []string
	err    error
}

// Run renders all descriptors. Per-item failures are collected in the
// result; only setup, context and catalog errors abort the build.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	res := &Result{Version: b.src.Version()}

	var mu sync.Mutex
	unresolved := make(map[string]bool)
	opts := b.opts.Renderer
	next := opts.OnUnresolved
	opts.OnUnresolved = func(err error) {
		mu.Lock()
		unresolved[err.Error()] = true
		mu.Unlock()
		if next != nil {
			next(err)
		}
	}
	r := autodoc.NewRenderer(b.src, opts)

	known := make(map[string]string)
	buildID := 0
	if b.catalog != nil {
		pages, err := b.catalog.ListPages()
		if err != nil {
			return nil, fmt.Errorf("listing pages: %w", err)
		}
		for _, p := range pages {
			known[p.Locator] = p.ContentHash
		}
		if buildID, err = b.catalog.StartBuild(res.Version); err != nil {
			return nil, fmt.Errorf("starting build: %w", err)
		}
	}

	locators := b.src.Locators()
	outcomes := make([]outcome, len(locators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, loc := range locators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = b.buildOne(r, loc, known)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building pages: %w", err)
	}

	var kept []string
	produced := make(map[string]bool)
	for i, o := range outcomes {
		loc := locators[i]
		switch o.status {
		case statusFailed:
			slog.Warn("render failed", "locator", loc, "error", o.err)
			res.Failed = append(res.Failed, o.err)
			continue
		case statusSkipped:
			res.Skipped = append(res.Skipped, loc)
			continue
		case statusUnchanged:
			res.Unchanged = append(res.Unchanged, loc)
		case statusRendered:
			res.Rendered = append(res.Rendered, loc)
		}
		kept = append(kept, loc)
		produced[autodoc.PagePath(loc)] = true

		if b.catalog != nil {
			if _, err := b.catalog.UpsertPage(o.page); err != nil {
				return nil, fmt.Errorf("recording %s: %w", loc, err)
			}
		}
	}

	for i, o := range outcomes {
		for _, target := range o.links {
			if !produced[strings.TrimPrefix(target, b.opts.Renderer.LinkPrefix)] {
				res.Dangling = append(res.Dangling, Link{Page: locators[i], Target: target})
			}
		}
	}

	for msg := range unresolved {
		res.Unresolved = append(res.Unresolved, msg)
	}
	sort.Strings(res.Unresolved)

	if b.catalog != nil {
		pruned, err := b.catalog.PrunePages(kept)
		if err != nil {
			return nil, fmt.Errorf("pruning pages: %w", err)
		}
		for _, loc := range pruned {
			if err := os.Remove(b.outPath(loc)); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("removing stale page", "locator", loc, "error", err)
			}
		}
		res.Pruned = pruned

		if err := b.catalog.FinishBuild(buildID, len(res.Rendered), len(res.Unchanged), len(res.Failed)); err != nil {
			return nil, fmt.Errorf("finishing build: %w", err)
		}
	}

	slog.Info("build finished",
		"version", res.Version,
		"rendered", len(res.Rendered),
		"unchanged", len(res.Unchanged),
		"skipped", len(res.Skipped),
		"failed", len(res.Failed),
		"dangling", len(res.Dangling),
	)
	return res, nil
}

func (b *Builder) outPath(loc string) string {
	return filepath.Join(b.opts.OutputDir, filepath.FromSlash(autodoc.PagePath(loc))+".md")
}

func (b *Builder) buildOne(r *autodoc.Renderer, loc string, known map[string]string) outcome {
	info, err := b.src.Load(loc)
	if err != nil {
		return outcome{err: err}
	}
	if info.Hidden && !b.opts.IncludeHidden {
		slog.Debug("skipping hidden item", "locator", loc)
		return outcome{status: statusSkipped}
	}

	doc, err := r.RenderDocument(info)
	if err != nil {
		return outcome{err: fmt.Errorf("%s: %w", loc, err)}
	}

	content := doc.Markdown
	if b.opts.FrontMatter {
		content, err = md.AddFrontMatter(content, FrontMatter(info, doc))
		if err != nil {
			return outcome{err: fmt.Errorf("%s: %w", loc, err)}
		}
	}

	hash := cas.Hash(content)
	if b.pages != nil {
		if hash, err = b.pages.Write(content); err != nil {
			return outcome{err: fmt.Errorf("%s: %w", loc, err)}
		}
	}

	o := outcome{
		status: statusRendered,
		page: &db.Page{
			Locator:     loc,
			Name:        info.Name,
			Package:     info.Package,
			Category:    info.Category,
			Kind:        string(doc.Kind),
			Hidden:      info.Hidden,
			ContentHash: hash,
			Fragments:   fragmentNames(doc),
		},
		links: b.referenceLinks(doc.Markdown),
	}

	out := b.outPath(loc)
	if b.unchanged(out, loc, hash, known) {
		o.status = statusUnchanged
		return o
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return outcome{err: fmt.Errorf("creating output directory: %w", err)}
	}
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return outcome{err: fmt.Errorf("writing %s: %w", out, err)}
	}
	return o
}

func (b *Builder) unchanged(out, loc, hash string, known map[string]string) bool {
	if b.catalog != nil {
		if known[loc] != hash {
			return false
		}
		_, err := os.Stat(out)
		return err == nil
	}
	existing, err := os.ReadFile(out)
	if err != nil {
		return false
	}
	return cas.Hash(string(existing)) == hash
}

func (b *Builder) referenceLinks(markdown string) []string {
	var links []string
	for _, dest := range md.ExtractLinks(markdown) {
		if strings.HasPrefix(dest, b.opts.Renderer.LinkPrefix) {
			links = append(links, dest)
		}
	}
	return links
}

// FrontMatter returns the front-matter fields written ahead of a page.
func FrontMatter(info *autodoc.ItemInfo, doc *autodoc.Document) map[string]any {
	fields := map[string]any{
		"title": doc.Title,
		"kind":  string(doc.Kind),
	}
	if doc.Summary != "" {
		fields["description"] = firstParagraph(doc.Summary)
	}
	if info.Category != "" {
		fields["category"] = info.Category
	}
	if info.Package != "" {
		fields["package"] = info.Package
	}
	if names := fragmentNames(doc); len(names) > 0 {
		fields["fragments"] = names
	}
	return fields
}

func fragmentNames(doc *autodoc.Document) []string {
	names := make([]string, len(doc.Fragments))
	for i, f := range doc.Fragments {
		names[i] = f.Name
	}
	return names
}

func firstParagraph(s string) string {
	para, _, _ := strings.Cut(s, "\n\n")
	return strings.Join(strings.Fields(para), " ")
}
