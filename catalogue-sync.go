// Package cataloguesync serves a periodically-changing catalogue to
// polling clients, using conditional requests (ETag / If-None-Match)
// so unchanged data is never re-transmitted.
package cataloguesync

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/always-cache/catalogue-sync/catalogue"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Config struct {
	// Schedule of snapshots to rotate through.
	// A sample schedule is used if empty.
	Schedule catalogue.Schedule
	// Store holding the current snapshot. Created if nil.
	Store *catalogue.Store
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Do not start rotating on creation.
	// The first snapshot is still installed, and a POST to /reset
	// starts the rotation as usual.
	DisableRotation bool
}

// Server publishes the catalogue over HTTP.
// It implements the http.Handler interface.
type Server struct {
	store   *catalogue.Store
	rotator *catalogue.Rotator
	log     zerolog.Logger
	router  chi.Router
}

// New initializes the catalogue-sync server.
// It seeds the store with the first snapshot and starts the rotation,
// so the store is never observed empty by a request.
func New(config Config) *Server {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	schedule := config.Schedule
	if schedule.Len() == 0 {
		schedule = catalogue.SampleSchedule(10, catalogue.DefaultDelay)
	}
	store := config.Store
	if store == nil {
		store = catalogue.NewStore()
	}

	s := &Server{
		store:   store,
		rotator: catalogue.NewRotator(store, schedule, &logger),
		log:     logger,
	}

	router := chi.NewRouter()
	router.Get("/catalogue", s.handleCatalogue)
	router.Get("/catalogueWithETag", s.handleCatalogueWithETag)
	router.Post("/reset", s.handleReset)
	router.Get("/healthz", s.handleHealthz)
	s.router = router

	if !config.DisableRotation {
		s.rotator.Start()
	}

	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background rotation.
func (s *Server) Close() {
	s.rotator.Stop()
}

// Rotator exposes the rotation for out-of-band control, e.g. from
// tests that drive the schedule explicitly.
func (s *Server) Rotator() *catalogue.Rotator {
	return s.rotator
}

// handleCatalogue serves the full current snapshot unconditionally.
func (s *Server) handleCatalogue(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.Read()
	if snapshot == nil {
		s.log.Error().Msg("Store read before first snapshot install")
		http.Error(w, "catalogue not ready", http.StatusInternalServerError)
		return
	}
	s.writeCatalogue(w, snapshot)
	s.logRequest(r, http.StatusOK, snapshot.ETag())
}

// handleCatalogueWithETag serves the snapshot conditionally: a request
// whose If-None-Match validator identifies the current snapshot gets
// an empty 304 instead of the body. The decision and the returned ETag
// are computed from one atomic store read, so a concurrent rotation
// tick cannot produce a mismatched pair.
func (s *Server) handleCatalogueWithETag(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.Read()
	if snapshot == nil {
		s.log.Error().Msg("Store read before first snapshot install")
		http.Error(w, "catalogue not ready", http.StatusInternalServerError)
		return
	}
	result := Evaluate(snapshot, r.Header.Get("If-None-Match"))
	w.Header().Set("ETag", result.ETag)
	if result.NotModified {
		w.WriteHeader(http.StatusNotModified)
		s.logRequest(r, http.StatusNotModified, result.ETag)
		return
	}
	s.writeCatalogue(w, result.Catalogue)
	s.logRequest(r, http.StatusOK, result.ETag)
}

// handleReset restarts the rotation from the first snapshot.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.rotator.Reset()
	w.WriteHeader(http.StatusOK)
	s.logRequest(r, http.StatusOK, "")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) writeCatalogue(w http.ResponseWriter, c *catalogue.Catalogue) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c); err != nil {
		s.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

func (s *Server) logRequest(r *http.Request, status int, tag string) {
	s.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Int("status", status).
		Str("etag", tag).
		Msg("Sending response to client")
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	ip := ipAndPort[:portSepIdx]
	return ip
}
