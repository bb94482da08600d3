package api

import (
	"net/http"

	"github.com/humanmade/blockindex/pkg/blocks"
	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/relations"
)

// CategoryPayload is the request body for category creation
type CategoryPayload struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent int64  `json:"parent"`
}

// listCategories handles GET /api/v1/categories
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, categories)
}

// createCategory handles POST /api/v1/categories
func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if !httputil.RequireNonEmpty(w, payload.Name, "name") {
		return
	}

	slug := payload.Slug
	if slug == "" {
		slug = blocks.Slugify(payload.Name)
	}

	cat := &blocks.Category{
		Name:   payload.Name,
		Slug:   slug,
		Parent: payload.Parent,
	}
	if err := s.store.CreateCategory(r.Context(), cat); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, cat)
}

// Settings is the editor bootstrap payload
type Settings struct {
	EditPostURL          string   `json:"edit_post_url"`
	RelationshipsPerPage int      `json:"relationships_per_page"`
	EmbeddableTypes      []string `json:"embeddable_types"`
}

// getSettings handles GET /api/v1/settings
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, Settings{
		EditPostURL:          s.cfg.EditURLTemplate,
		RelationshipsPerPage: relations.PerPage,
		EmbeddableTypes:      s.cfg.EmbeddableTypes,
	})
}
