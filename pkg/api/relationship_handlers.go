package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/relations"
)

// listRelationships handles GET /api/v1/relationships?block_id=&page=
//
// Responds with the page of documents embedding the block, totals in the
// X-Total and X-Total-Pages headers, and prev/next Link relations when
// those pages exist. Lookup failures map to 404, a page past the end to
// 400, mirroring the status codes editor clients already handle.
func (s *Server) listRelationships(w http.ResponseWriter, r *http.Request) {
	blockID, err := httputil.ParseQueryInt64(r, "block_id", 0)
	if err != nil || blockID == 0 {
		httputil.WriteNotFoundError(w, "blockindex.relationships.no_block_id", "A valid block ID is required.")
		return
	}

	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil || page < 1 {
		httputil.WriteValidationError(w, "blockindex.relationships.invalid_page_number", "The page number must be a positive integer.")
		return
	}

	result, err := s.query.ListRelated(r.Context(), blockID, page)
	if err != nil {
		switch {
		case errors.Is(err, relations.ErrMissingBlockID):
			httputil.WriteNotFoundError(w, "blockindex.relationships.no_block_id", "A valid block ID is required.")
		case errors.Is(err, relations.ErrNotFound):
			httputil.WriteNotFoundError(w, "blockindex.relationships.block_not_found", "No block found for the given ID.")
		case errors.Is(err, relations.ErrWrongKind):
			httputil.WriteNotFoundError(w, "blockindex.relationships.not_a_block", "The given ID does not belong to a reusable block.")
		case errors.Is(err, relations.ErrPageOutOfRange):
			httputil.WriteValidationError(w, "blockindex.relationships.invalid_page_number", "The page number requested is larger than the number of pages available.")
		default:
			s.logger.WithError(err).WithField("block_id", blockID).Error("relationship lookup failed")
			httputil.WriteNotFoundError(w, "blockindex.relationships.lookup_failed", "Relationship data for the block could not be loaded.")
		}
		return
	}

	w.Header().Set("X-Total", strconv.Itoa(result.TotalItems))
	w.Header().Set("X-Total-Pages", strconv.Itoa(result.TotalPages))

	if link := paginationLinks(r, result.Page, result.TotalPages); link != "" {
		w.Header().Set("Link", link)
	}

	httputil.WriteSuccess(w, result.Items)
}

// paginationLinks builds the Link header value with prev/next relations
// for the pages adjacent to the current one.
func paginationLinks(r *http.Request, page, totalPages int) string {
	base := *r.URL
	link := ""

	pageURL := func(p int) string {
		q := base.Query()
		q.Set("page", strconv.Itoa(p))
		base.RawQuery = q.Encode()
		return base.String()
	}

	if page > 1 {
		link = fmt.Sprintf("<%s>; rel=\"prev\"", pageURL(page-1))
	}
	if page < totalPages {
		if link != "" {
			link += ", "
		}
		link += fmt.Sprintf("<%s>; rel=\"next\"", pageURL(page+1))
	}
	return link
}
