package weavetest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/user/1.0/{username}/node/weave", s.nodeWeave)

	r.Route("/1.1/{username}", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/info/collections", s.infoCollectionsHandler)
		r.Get("/storage/{collection}", s.collectionHandler)
		r.Get("/storage/{collection}/{id}", s.objectHandler)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, RawQuery: r.URL.RawQuery, User: user})
		status, fail := s.failures[r.URL.Path]
		s.mu.Unlock()

		if fail {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.account.Username() || pass != s.password || chi.URLParam(r, "username") != user {
			w.Header().Set("WWW-Authenticate", `Basic realm="weave"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) nodeWeave(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "username") != s.account.Username() {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	node := s.srv.URL + "/"
	if s.node != nil {
		node = *s.node
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(node))
}

func (s *Server) infoCollectionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	override := s.infoOverride
	info := s.infoCollections()
	s.mu.Unlock()

	if override != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(*override))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) collectionHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[chi.URLParam(r, "collection")]
	if !ok {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	recs := s.sortedRecords(c)
	if r.URL.Query().Get("full") != "1" {
		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID
		}
		writeJSON(w, http.StatusOK, ids)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) objectHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[chi.URLParam(r, "collection")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	rec, ok := c.records[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
