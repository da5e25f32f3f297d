package api

import (
	"github.com/starford/ansuz/internal/db"
	"github.com/starford/ansuz/internal/models"
)

// UpdateChunkRequest is the request body for patching a chunk. Nil fields
// are left unchanged.
type UpdateChunkRequest struct {
	Note       *string `json:"note"`
	Bookmarked *bool   `json:"bookmarked"`
}

// ProfileListResponse wraps paginated profile listings.
type ProfileListResponse struct {
	Profiles []models.Profile `json:"profiles" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps full-text search results.
type SearchResponse struct {
	Results []db.SearchResult `json:"results" validate:"required"`
}
