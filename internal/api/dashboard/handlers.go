package dashboard

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

var emptyObject = []byte("{}")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleLatest отдаёт последнюю запись журнала или {}, если журнал пуст или повреждён.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	body := emptyObject
	if raw, ok := s.latest.LatestRaw(r.Context()); ok {
		body = raw
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(body)
}

// handleImage отдаёт размеченный снимок. Имя обязано быть именем файла
// внутри ImageDir: любые пути и переходы наверх дают 404.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil || !isPlainFileName(name) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.opts.ImageDir, name)
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	log.Debug().Str("image", name).Msg("Serving image")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func isPlainFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
