package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/service"
)

// Listings is the read side behind the browse endpoints.
type Listings interface {
	Popular(ctx context.Context, limit int) ([]model.Listing, error)
	Search(ctx context.Context, keyword, location string, limit int) ([]model.Listing, error)
	Latest(ctx context.Context, kind model.ListingType, limit int) ([]model.Listing, error)
	Get(ctx context.Context, kind model.ListingType, id uint64) (model.Listing, error)
}

// ListingHandler serves popular, search and detail reads.
type ListingHandler struct {
	listings       Listings
	legacyNotFound bool
}

// NewListingHandler builds the handler.  With legacyNotFound set, a missing
// detail row answers 200 {"error":"Not found"} instead of a 404 envelope.
func NewListingHandler(l Listings, legacyNotFound bool) *ListingHandler {
	return &ListingHandler{listings: l, legacyNotFound: legacyNotFound}
}

// queryLimit reads ?limit; anything unparsable counts as absent.
func queryLimit(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		return 0
	}
	return n
}

// Popular handles GET /listings/popular?limit=.
func (h *ListingHandler) Popular(c echo.Context) error {
	rows, err := h.listings.Popular(c.Request().Context(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// Search handles GET /listings/search?q=&location=&limit=.
func (h *ListingHandler) Search(c echo.Context) error {
	rows, err := h.listings.Search(c.Request().Context(), c.QueryParam("q"), c.QueryParam("location"), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// Properties handles GET /properties: the newest properties.
func (h *ListingHandler) Properties(c echo.Context) error {
	rows, err := h.listings.Latest(c.Request().Context(), model.TypeProperty, service.PropertiesPageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// Detail returns the handler for GET /<kind>/:id.
func (h *ListingHandler) Detail(kind model.ListingType) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			return apperr.Validation("invalid id")
		}
		l, err := h.listings.Get(c.Request().Context(), kind, id)
		if apperr.Is(err, apperr.CodeNotFound) && h.legacyNotFound {
			return c.JSON(http.StatusOK, echo.Map{"error": "Not found"})
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, l)
	}
}
