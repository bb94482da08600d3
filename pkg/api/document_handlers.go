package api

import (
	"errors"
	"net/http"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/store"
)

// DocumentPayload is the request body for document create/update
type DocumentPayload struct {
	Type    string        `json:"type"`
	Title   string        `json:"title"`
	Slug    string        `json:"slug"`
	Content string        `json:"content"`
	Status  blocks.Status `json:"status"`
}

// createDocument handles POST /api/v1/documents. This is the generic save
// pipeline: persist, then run index maintenance for every document type
// (non-blocks skip the entry step, non-embeddable types skip edge sync).
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var payload DocumentPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if !httputil.RequireNonEmpty(w, payload.Type, "type") {
		return
	}
	if !httputil.RequireNonEmpty(w, payload.Title, "title") {
		return
	}
	if payload.Status == "" {
		payload.Status = blocks.StatusDraft
	}
	if !payload.Status.Valid() {
		httputil.WriteValidationError(w, "blockindex.documents.invalid_status", "unknown document status")
		return
	}

	ctx := r.Context()

	slug := payload.Slug
	if slug == "" {
		var err error
		slug, err = s.uniqueSlug(ctx, payload.Title, 0)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	doc := &blocks.Document{
		Type:    payload.Type,
		Title:   payload.Title,
		Slug:    slug,
		Content: payload.Content,
		Status:  payload.Status,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	s.syncAfterSave(ctx, nil, doc)

	httputil.WriteCreated(w, doc)
}

// updateDocument handles PUT /api/v1/documents/{id}. The before state is
// captured ahead of the write so edge synchronization can compare content.
func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()

	before, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "blockindex.documents.not_found", "No document found for the given ID.")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	var payload DocumentPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if payload.Type != "" && payload.Type != before.Type {
		httputil.WriteValidationError(w, "blockindex.documents.type_immutable", "a document cannot change type")
		return
	}

	after := *before
	if payload.Title != "" {
		after.Title = payload.Title
	}
	if payload.Slug != "" {
		after.Slug = payload.Slug
	}
	after.Content = payload.Content
	if payload.Status != "" {
		if !payload.Status.Valid() {
			httputil.WriteValidationError(w, "blockindex.documents.invalid_status", "unknown document status")
			return
		}
		after.Status = payload.Status
	}

	if err := s.store.UpdateDocument(ctx, &after); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	s.syncAfterSave(ctx, before, &after)

	httputil.WriteSuccess(w, &after)
}
