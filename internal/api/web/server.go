// Package web provides the HTML pages, form actions and the player WebSocket.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/app/pages"
	"github.com/osa030/podplay/internal/app/provider"
	"github.com/osa030/podplay/internal/app/session"
	"github.com/osa030/podplay/internal/domain/episode"
)

// Episodes provides the episodes the player actions resolve.
type Episodes interface {
	Latest(ctx context.Context, limit int) ([]episode.Episode, error)
	Episode(ctx context.Context, id string) (*episode.Episode, error)
	Episodes(ctx context.Context, ids []string) (episode.List, error)
}

// Pages renders the HTML pages.
type Pages interface {
	Home(ctx context.Context) ([]byte, error)
	Episode(ctx context.Context, slug string) ([]byte, error)
}

// Config represents web surface configuration.
type Config struct {
	CookieName   string
	CookieMaxAge time.Duration
	SecureCookie bool
	HomeLimit    int
}

// Server serves the pages and the player surface.
type Server struct {
	pages    Pages
	assets   http.Handler
	sessions *session.Manager
	episodes Episodes
	config   Config
	upgrader websocket.Upgrader
}

// New creates a new web Server.
func New(p Pages, assets http.Handler, sessions *session.Manager, episodes Episodes, cfg Config) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "podplay_session"
	}
	if cfg.HomeLimit <= 0 {
		cfg.HomeLimit = 12
	}
	return &Server{
		pages:    p,
		assets:   assets,
		sessions: sessions,
		episodes: episodes,
		config:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Register registers the routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /episodes/{slug}", s.handleEpisode)
	if s.assets != nil {
		mux.Handle("GET /static/", s.assets)
	}
	mux.HandleFunc("GET /ws/player", s.handlePlayerSocket)
	mux.HandleFunc("POST /player/play/{slug}", s.handlePlay)
	mux.HandleFunc("POST /player/play-list", s.handlePlayList)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	body, err := s.pages.Home(r.Context())
	s.writePage(w, r, body, err)
}

func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	body, err := s.pages.Episode(r.Context(), r.PathValue("slug"))
	s.writePage(w, r, body, err)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, body []byte, err error) {
	if errors.Is(err, pages.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		zlog.Error().Msgf("failed to render page: path=%s error=%v", r.URL.Path, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handlePlay replaces the queue with the episode of the page.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	slug := r.PathValue("slug")

	e, err := s.episodes.Episode(r.Context(), slug)
	if errors.Is(err, provider.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		zlog.Error().Msgf("failed to resolve episode: slug=%s error=%v", slug, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	sess.Player.Play(*e)
	redirectBack(w, r, pages.EpisodePath(slug))
}

// handlePlayList plays the home page list starting at ?index=N.
func (s *Server) handlePlayList(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}

	list, err := s.episodes.Latest(r.Context(), s.config.HomeLimit)
	if err != nil {
		zlog.Error().Msgf("failed to list episodes: error=%v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := sess.Player.PlayList(list, index); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	redirectBack(w, r, pages.HomePath)
}

// session returns the session of the request cookie, opening a new one and
// setting the cookie when missing or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, created := s.sessions.Open(s.sessionID(r))
	if created {
		http.SetCookie(w, s.cookie(sess.ID))
	}
	return sess
}

func (s *Server) sessionID(r *http.Request) string {
	c, err := r.Cookie(s.config.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.config.CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// redirectBack redirects to the referring page of the same site, or fallback.
func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	if ref := r.Referer(); ref != "" {
		if u, err := r.URL.Parse(ref); err == nil && (u.Host == "" || u.Host == r.Host) {
			target = u.RequestURI()
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
