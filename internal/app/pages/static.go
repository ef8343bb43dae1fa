package pages

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

//go:embed static/*
var staticFS embed.FS

// asset is a minified static file.
type asset struct {
	contentType string
	body        []byte
}

// Assets serves the embedded stylesheet and player script, minified once.
type Assets struct {
	files map[string]asset
}

// NewAssets minifies the embedded static files.
func NewAssets() (*Assets, error) {
	m := newMinifier()
	a := &Assets{files: make(map[string]asset)}

	err := fs.WalkDir(staticFS, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := staticFS.ReadFile(p)
		if err != nil {
			return err
		}

		mediatype := mediaType(p)
		out, err := m.Bytes(mediatype, raw)
		if err != nil {
			zlog.Warn().Msgf("minify warning: %s: %v (using original)", p, err)
			out = raw
		}
		a.files[path.Base(p)] = asset{contentType: mime.TypeByExtension(path.Ext(p)), body: out}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load static files")
	}
	return a, nil
}

func mediaType(p string) string {
	switch path.Ext(p) {
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	default:
		return "text/html"
	}
}

// ServeHTTP serves /static/{name}.
func (a *Assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, ok := a.files[path.Base(r.URL.Path)]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if f.contentType != "" {
		w.Header().Set("Content-Type", f.contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.body)
}
