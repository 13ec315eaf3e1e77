package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/storage"
)

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Status: "ok",
		Data: map[string]interface{}{
			"timestamp": time.Now().Unix(),
		},
	})
}

// runDigestHandler runs a digest synchronously. Query parameters period,
// articles and send_email override the configuration.
func (s *Server) runDigestHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A run outlives its request: a dropped client must not degrade the digest.
	result, ran, err := s.RunDigest(context.WithoutCancel(r.Context()), opts)
	if !ran {
		writeError(w, http.StatusConflict, "a digest run is already in progress")
		return
	}
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.Is(err, config.ErrInvalidPeriod) || errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(r.Context(), s.logger).Error("digest run failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeSuccess(w, "digest generated", result)
}

func parseOptions(r *http.Request) (digest.Options, error) {
	q := r.URL.Query()
	opts := digest.Options{Period: q.Get("period")}

	if v := q.Get("articles"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, errors.New("articles must be a positive integer")
		}
		opts.ArticlesPerCategory = n
	}
	if v := q.Get("send_email"); v != "" {
		send, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("send_email must be a boolean")
		}
		opts.SendEmail = send
	}
	return opts, nil
}

// listDigestsHandler lists saved digests, newest first.
func (s *Server) listDigestsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error("listing digests", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list digests")
		return
	}

	writeSuccess(w, "", map[string]interface{}{
		"digests": names,
		"count":   len(names),
	})
}

// getDigestHandler returns one saved digest as markdown.
func (s *Server) getDigestHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	body, err := s.store.Get(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "digest not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(body)
}

// configHandler returns configuration (sanitized)
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "", map[string]interface{}{
		"period":                s.config.Period,
		"articles_per_category": s.config.ArticlesPerCategory,
		"categories":            s.config.Categories,
		"rss_sources":           s.config.RSSSources,
		"llm_provider":          s.config.LLM.Provider,
		"llm_model":             s.config.LLM.Model,
		"schedule":              s.config.Schedule,
		"storage_bucket":        s.config.Storage.Bucket,
	})
}
