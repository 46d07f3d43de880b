package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/index"
)

// CreateEntityRequest is the request body for creating an entity.
type CreateEntityRequest struct {
	Kind       string         `json:"kind" example:"note" validate:"required"`
	Name       string         `json:"name" example:"Groceries"`
	Properties map[string]any `json:"properties"`
	Parents    []string       `json:"parents"`
	Origin     string         `json:"origin" example:"user"`
}

// Validate checks the request shape; kind semantics are checked against the
// registry by the handler.
func (r CreateEntityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required),
		validation.Field(&r.Origin, validation.In("", "user", "drop")),
	)
}

// UpdateEntityRequest is the request body for updating an entity. Nil
// fields are left untouched.
type UpdateEntityRequest struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

// Validate requires at least one field to change.
func (r UpdateEntityRequest) Validate() error {
	if r.Name == nil && r.Content == nil {
		return validation.NewError("validation_empty_update", "nothing to update")
	}
	return nil
}

// ConvertRequest names the target kind for a conversion.
type ConvertRequest struct {
	Kind string `json:"kind" example:"task" validate:"required"`
}

// Validate checks the request shape.
func (r ConvertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required),
	)
}

// InsertChildrenRequest splices entities into a parent's member list.
type InsertChildrenRequest struct {
	Index    int      `json:"index"`
	Entities []string `json:"entities" validate:"required"`
}

// Validate checks the request shape.
func (r InsertChildrenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Entities, validation.Required),
		validation.Field(&r.Index, validation.Min(0)),
	)
}

// OrderRequest is the full replacement member order.
type OrderRequest struct {
	Entities []string `json:"entities" validate:"required"`
}

// Validate checks the request shape.
func (r OrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Entities, validation.Required),
	)
}

// ParentRequest names a parent for a categorization relation.
type ParentRequest struct {
	Parent     string         `json:"parent" validate:"required"`
	Properties map[string]any `json:"properties"`
}

// Validate checks the request shape.
func (r ParentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Parent, validation.Required),
	)
}

// EntityListResponse wraps entity listings.
type EntityListResponse struct {
	Entities []EntityListItem `json:"entities" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a node in the reference graph.
type GraphNode = index.GraphNode

// GraphLink is an edge in the reference graph.
type GraphLink = index.GraphLink

// GraphResponse wraps the reference graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}
