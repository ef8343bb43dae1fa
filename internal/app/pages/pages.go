// Package pages renders the podcast pages and keeps them cached with
// time-based revalidation.
package pages

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goodsign/monday"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/osa030/podplay/internal/app/provider"
	"github.com/osa030/podplay/internal/domain/episode"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrNotFound is returned when a page has no episode behind it.
var ErrNotFound = errors.New("page not found")

// latestCount is how many episodes the home page highlights.
const latestCount = 2

// Source provides the episodes behind the pages.
type Source interface {
	Latest(ctx context.Context, limit int) ([]episode.Episode, error)
	Episode(ctx context.Context, id string) (*episode.Episode, error)
}

// Config represents page rendering configuration.
type Config struct {
	SiteTitle      string
	Locale         monday.Locale
	HomeLimit      int
	PrerenderCount int
	Revalidate     time.Duration
}

// entry is a rendered page.
type entry struct {
	body       []byte
	renderedAt time.Time
	refreshing bool
}

// Renderer renders pages and serves them from cache until they go stale.
type Renderer struct {
	source   Source
	config   Config
	tmpl     *template.Template
	minifier *minify.M
	now      func() time.Time

	cache   map[string]*entry
	cacheMu sync.Mutex

	// Background refreshes in flight
	refreshes sync.WaitGroup
}

// New creates a new Renderer.
func New(source Source, cfg Config) (*Renderer, error) {
	if source == nil {
		return nil, errors.New("episode source is required")
	}
	if cfg.Locale == "" {
		cfg.Locale = episode.DefaultLocale
	}
	if cfg.HomeLimit <= 0 {
		cfg.HomeLimit = 12
	}
	if cfg.Revalidate <= 0 {
		cfg.Revalidate = 24 * time.Hour
	}

	tmpl, err := template.New("root").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse templates")
	}

	return &Renderer{
		source:   source,
		config:   cfg,
		tmpl:     tmpl,
		minifier: newMinifier(),
		now:      time.Now,
		cache:    make(map[string]*entry),
	}, nil
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return m
}

// HomePath is the path of the home page.
const HomePath = "/"

// EpisodePath returns the path of an episode page.
func EpisodePath(slug string) string {
	return "/episodes/" + slug
}

// Home returns the home page.
func (r *Renderer) Home(ctx context.Context) ([]byte, error) {
	return r.page(ctx, HomePath, r.renderHome)
}

// Episode returns the page of an episode. Pages not rendered yet are rendered
// before returning. Returns ErrNotFound for unknown slugs.
func (r *Renderer) Episode(ctx context.Context, slug string) ([]byte, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" || strings.Contains(slug, "/") {
		return nil, ErrNotFound
	}
	return r.page(ctx, EpisodePath(slug), func(ctx context.Context) ([]byte, error) {
		return r.renderEpisode(ctx, slug)
	})
}

// Prerender renders the home page and the pages of the newest episodes.
func (r *Renderer) Prerender(ctx context.Context) error {
	if _, err := r.Home(ctx); err != nil {
		return errors.Wrap(err, "failed to prerender home page")
	}
	if r.config.PrerenderCount <= 0 {
		return nil
	}

	latest, err := r.source.Latest(ctx, r.config.PrerenderCount)
	if err != nil {
		return errors.Wrap(err, "failed to list episodes to prerender")
	}
	for _, e := range latest {
		if _, err := r.Episode(ctx, e.ID); err != nil {
			return errors.Wrapf(err, "failed to prerender episode %s", e.ID)
		}
	}

	zlog.Info().Msgf("prerendered pages: episodes=%d", len(latest))
	return nil
}

// Cached reports whether a page is in the cache.
func (r *Renderer) Cached(path string) bool {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	_, ok := r.cache[path]
	return ok
}

// Invalidate drops every cached page.
func (r *Renderer) Invalidate() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache = make(map[string]*entry)
}

// Wait blocks until background refreshes are done.
func (r *Renderer) Wait() {
	r.refreshes.Wait()
}

// page returns a cached page, rendering it when missing and starting a single
// background refresh when stale.
func (r *Renderer) page(ctx context.Context, path string, render func(context.Context) ([]byte, error)) ([]byte, error) {
	r.cacheMu.Lock()
	e, ok := r.cache[path]
	if ok {
		body := e.body
		if r.now().Sub(e.renderedAt) >= r.config.Revalidate && !e.refreshing {
			e.refreshing = true
			r.refreshes.Add(1)
			go r.refresh(context.WithoutCancel(ctx), path, render)
		}
		r.cacheMu.Unlock()
		return body, nil
	}
	r.cacheMu.Unlock()

	body, err := render(ctx)
	if err != nil {
		return nil, err
	}
	r.store(path, body)
	zlog.Debug().Msgf("rendered page: path=%s bytes=%d", path, len(body))
	return body, nil
}

func (r *Renderer) refresh(ctx context.Context, path string, render func(context.Context) ([]byte, error)) {
	defer r.refreshes.Done()

	body, err := render(ctx)
	if err != nil {
		zlog.Warn().Msgf("page refresh failed, keeping stale page: path=%s error=%v", path, err)
		r.cacheMu.Lock()
		if e, ok := r.cache[path]; ok {
			e.refreshing = false
		}
		r.cacheMu.Unlock()
		return
	}

	r.store(path, body)
	zlog.Debug().Msgf("revalidated page: path=%s", path)
}

func (r *Renderer) store(path string, body []byte) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[path] = &entry{body: body, renderedAt: r.now()}
}

// episodeView is an episode as shown on the pages.
type episodeView struct {
	Index       int
	ID          string
	Title       string
	Members     string
	Thumbnail   string
	Published   string
	Duration    string
	Description template.HTML
}

// pageData is the layout data.
type pageData struct {
	Page      string
	Lang      string
	SiteTitle string
	Heading   string
	Today     string
	Latest    []episodeView
	Rest      []episodeView
	Episode   *episodeView
}

func (r *Renderer) renderHome(ctx context.Context) ([]byte, error) {
	episodes, err := r.source.Latest(ctx, r.config.HomeLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest episodes")
	}

	views := lo.Map(episodes, func(e episode.Episode, i int) episodeView {
		return r.view(e, i)
	})
	split := min(latestCount, len(views))

	data := r.data("home")
	data.Latest = views[:split]
	data.Rest = views[split:]
	return r.execute(data)
}

func (r *Renderer) renderEpisode(ctx context.Context, slug string) ([]byte, error) {
	e, err := r.source.Episode(ctx, slug)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get episode %s", slug)
	}

	view := r.view(*e, 0)
	data := r.data("episode")
	data.Heading = e.Title
	data.Episode = &view
	return r.execute(data)
}

func (r *Renderer) data(page string) pageData {
	return pageData{
		Page:      page,
		Lang:      strings.ReplaceAll(string(r.config.Locale), "_", "-"),
		SiteTitle: r.config.SiteTitle,
		Today:     monday.Format(r.now(), "Mon, 2 January", r.config.Locale),
	}
}

func (r *Renderer) view(e episode.Episode, index int) episodeView {
	return episodeView{
		Index:     index,
		ID:        e.ID,
		Title:     e.Title,
		Members:   e.Members,
		Thumbnail: e.Thumbnail,
		Published: e.PublishedLabel(r.config.Locale),
		Duration:  e.DurationString(),
		// Descriptions come from the configured sources as HTML.
		Description: template.HTML(e.Description),
	}
}

func (r *Renderer) execute(data pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, errors.Wrap(err, "failed to execute template")
	}

	out, err := r.minifier.Bytes("text/html", buf.Bytes())
	if err != nil {
		zlog.Warn().Msgf("minify warning: %v (using original)", err)
		return buf.Bytes(), nil
	}
	return out, nil
}
