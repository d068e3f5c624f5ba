// Package geodbtest runs an in-process fake of the geoDB REST API.
package geodbtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mohammed-shakir/geodb-places/internal/geodb"
)

const Token = "test-token"

// Collection is a fake collection keyed by "<database>_<collection>".
type Collection struct {
	SRID     int
	Info     geodb.CollectionInfo
	GeoJSON  string
	Status   int
	ErrorMsg string
}

type Request struct {
	Method   string
	Path     string
	RawQuery string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string]Collection
	requests    []Request
	tokenCalls  int
	tokenForm   map[string]string
}

func NewServer(t testing.TB, cols map[string]Collection) *Server {
	t.Helper()
	s := &Server{collections: cols}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests whose path equals path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

func (s *Server) TokenForm() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenForm
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	s.mu.Unlock()

	if r.URL.Path == "/oauth/token" {
		_ = r.ParseForm()
		s.mu.Lock()
		s.tokenCalls++
		s.tokenForm = map[string]string{}
		for k := range r.PostForm {
			s.tokenForm[k] = r.PostForm.Get(k)
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": Token,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT invalid"})
		return
	}

	switch r.URL.Path {
	case "/rpc/geodb_whoami":
		writeJSON(w, http.StatusOK, "geodb_user")
		return
	case "/rpc/geodb_get_collection_info", "/rpc/geodb_get_collection_srid":
		var args struct {
			Collection string `json:"collection"`
		}
		_ = json.NewDecoder(r.Body).Decode(&args)
		col, ok := s.collections[args.Collection]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "collection not found"})
			return
		}
		if strings.HasSuffix(r.URL.Path, "_info") {
			writeJSON(w, http.StatusOK, col.Info)
		} else {
			writeJSON(w, http.StatusOK, []map[string]int{{"srid": col.SRID}})
		}
		return
	}

	col, ok := s.collections[strings.TrimPrefix(r.URL.Path, "/")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "relation does not exist"})
		return
	}
	if col.Status != 0 {
		writeJSON(w, col.Status, map[string]string{"message": col.ErrorMsg})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write([]byte(col.GeoJSON))
}
