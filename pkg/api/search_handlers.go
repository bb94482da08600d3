package api

import (
	"errors"
	"net/http"

	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/search"
	"github.com/humanmade/blockindex/pkg/store"
)

// searchBlocks handles GET /api/v1/search?searchID=
//
// Resolves the ID to its candidate blocks. An unsupported document type
// is a successful empty result; everything else that goes wrong is a 404
// with a code naming the failure class.
func (s *Server) searchBlocks(w http.ResponseWriter, r *http.Request) {
	searchID := httputil.ParseQueryString(r, "searchID", "")

	results, err := s.search.ResolveCandidates(r.Context(), searchID)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrMissingSearchID):
			httputil.WriteNotFoundError(w, "blockindex.search.no_search_id", "A search ID is required.")
		case errors.Is(err, search.ErrInvalidSearchID):
			httputil.WriteNotFoundError(w, "blockindex.search.invalid_search_id", "The search ID must be a positive integer.")
		case errors.Is(err, search.ErrNotFound):
			httputil.WriteNotFoundError(w, "blockindex.search.post_not_found", "No document found for the given search ID.")
		case errors.Is(err, search.ErrBulkFetch):
			s.logger.WithError(err).WithField("search_id", searchID).Error("candidate fetch failed")
			httputil.WriteNotFoundError(w, "blockindex.search.fetch_failed", "The blocks for the given search ID could not be loaded.")
		default:
			s.logger.WithError(err).WithField("search_id", searchID).Error("search resolution failed")
			httputil.WriteNotFoundError(w, "blockindex.search.fetch_failed", "The blocks for the given search ID could not be loaded.")
		}
		s.countSearch("id", "error")
		return
	}

	s.countSearch("id", "ok")
	httputil.WriteSuccess(w, results)
}

// listBlocks handles GET /api/v1/blocks?search=&category=&per_page=
func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	categoryID, err := httputil.ParseQueryInt64(r, "category", 0)
	if err != nil {
		httputil.WriteValidationError(w, "blockindex.blocks.invalid_category", "The category filter must be an integer.")
		return
	}
	perPage, err := httputil.ParseQueryInt(r, "per_page", store.DefaultBlockLimit)
	if err != nil || perPage < 1 {
		httputil.WriteValidationError(w, "blockindex.blocks.invalid_per_page", "per_page must be a positive integer.")
		return
	}

	q := store.BlockQuery{
		Search:     httputil.ParseQueryString(r, "search", ""),
		CategoryID: categoryID,
		Limit:      perPage,
	}

	results, err := s.search.ListBlocks(r.Context(), q)
	if err != nil {
		s.logger.WithError(err).Error("block listing failed")
		httputil.WriteInternalError(w, err)
		return
	}

	s.countSearch("browse", "ok")
	httputil.WriteSuccess(w, results)
}

func (s *Server) countSearch(mode, status string) {
	if s.metrics != nil {
		s.metrics.SearchRequestsTotal.WithLabelValues(mode, status).Inc()
	}
}
