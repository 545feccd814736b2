package api

import (
	"encoding/json"

	"github.com/yourview/yourview/internal/models"
	"github.com/yourview/yourview/internal/upload"
)

// CanopyResponse is returned by GET /api/canopy.
type CanopyResponse struct {
	Suburb string          `json:"suburb" example:"Richmond, VIC" validate:"required"`
	Key    string          `json:"key" example:"Richmond" validate:"required"`
	Status string          `json:"status" example:"found" validate:"required"`
	Record json.RawMessage `json:"record"`
}

// CanopyErrorResponse is returned when the lookup did not produce a record.
type CanopyErrorResponse struct {
	Error  string `json:"error" validate:"required"`
	Suburb string `json:"suburb"`
	Key    string `json:"key"`
	Status string `json:"status" example:"not_found"`
}

// NormalizeResponse is returned by GET /api/suburbs/normalize.
type NormalizeResponse struct {
	Input string `json:"input" example:"Brunswick VIC"`
	Key   string `json:"key" example:"Brunswick"`
}

// RouteItem describes one page route.
type RouteItem struct {
	Path  string `json:"path" example:"/canopy"`
	Name  string `json:"name" example:"canopy"`
	Title string `json:"title" example:"Canopy"`
}

// RoutesResponse wraps the page route table.
type RoutesResponse struct {
	Routes []RouteItem `json:"routes"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse = upload.Receipt

// UploadListResponse wraps paginated upload listings.
type UploadListResponse struct {
	Uploads []models.Upload `json:"uploads" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}
