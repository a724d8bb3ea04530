package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/arxiv-collector/internal/domain"
)

// Validation constants.
const (
	defaultFetchLogLimit = 50
	maxFetchLogLimit     = 500
	maxUpdateDays        = 365
)

// listArticles handles GET /articles.
// Filters: keyword, category, year, limit, offset. All optional, AND-combined.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter, err := s.svc.ParseFilter(q.Get("keyword"), q.Get("category"), q.Get("year"), q.Get("limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if raw := q.Get("offset"); raw != "" {
		offset, convErr := strconv.Atoi(raw)
		if convErr != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	articles, err := s.svc.Query(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := listArticlesResponse{
		Articles: make([]articleResponse, 0, len(articles)),
		Count:    len(articles),
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	for i := range articles {
		resp.Articles = append(resp.Articles, domainArticleToResponse(&articles[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// getArticle handles GET /articles/{id}. The id may contain a slash, as in
// old-style identifiers like math/0601001.
func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if id == "" {
		writeError(w, http.StatusBadRequest, "article id is required")
		return
	}

	article, err := s.svc.ArticleDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainArticleToResponse(article))
}

// getStats handles GET /stats.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainStatsToResponse(stats))
}

// listFetchLog handles GET /fetch-log.
func (s *Server) listFetchLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseBoundedInt(w, r, "limit", defaultFetchLogLimit, 1, maxFetchLogLimit)
	if !ok {
		return
	}

	entries, err := s.svc.FetchLog(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := listFetchLogResponse{Entries: make([]fetchLogEntryResponse, 0, len(entries))}
	for i := range entries {
		resp.Entries = append(resp.Entries, domainAuditToResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// collectionStatus handles GET /collections/status.
func (s *Server) collectionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, collectionStatusResponse{Running: s.svc.CollectionRunning()})
}

// startUpdate handles POST /collections/update.
// It claims the store and runs the incremental update in the background,
// answering 202 immediately or 409 when another run holds the store.
func (s *Server) startUpdate(w http.ResponseWriter, r *http.Request) {
	days, ok := parseBoundedInt(w, r, "days", s.cfg.DefaultUpdateDays, 1, maxUpdateDays)
	if !ok {
		return
	}

	done, err := s.svc.StartIncrementalUpdate(s.runCtx, days)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	go func() {
		result := <-done
		if result.Err != nil || result.Report == nil {
			return
		}
		s.logger.Info().
			Str("run_id", result.Report.RunID.String()).
			Int("written", result.Report.Written()).
			Strs("failed_categories", result.Report.FailedCategories()).
			Msg("background update finished")
	}()

	writeJSON(w, http.StatusAccepted, startUpdateResponse{
		Status:   "started",
		DaysBack: days,
		Message:  "incremental update started",
	})
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, "out of range")
	case errors.Is(err, domain.ErrCollectionInProgress):
		writeError(w, http.StatusConflict, "collection already in progress")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrTransientFetch), errors.Is(err, domain.ErrMalformedPayload):
		writeError(w, http.StatusBadGateway, "upstream fetch failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseBoundedInt reads an optional integer query parameter, writing a 400
// error response when it is not an integer within [lo, hi].
func parseBoundedInt(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
		return 0, false
	}
	return v, true
}
