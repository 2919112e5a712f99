package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/model"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(nil)
	return e
}

func do(e *echo.Echo, method, target, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestErrorHandler_Envelope(t *testing.T) {
	e := newEcho()
	e.GET("/bad", func(echo.Context) error { return apperr.Validation("name should not be empty") })
	e.GET("/boom", func(echo.Context) error {
		return apperr.Storage(errors.New("dial tcp 10.0.0.3:3306: refused"), "load user")
	})

	rec := do(e, http.MethodGet, "/bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[errorEnvelope](t, rec)
	assert.Equal(t, 400, env.StatusCode)
	assert.Equal(t, "/bad", env.Path)
	assert.Equal(t, http.MethodGet, env.Method)
	assert.Equal(t, "name should not be empty", env.Message)
	_, err := time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err)

	rec = do(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env = decode[errorEnvelope](t, rec)
	assert.Equal(t, genericServerError, env.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")

	rec = do(e, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decode[errorEnvelope](t, rec).Message)
}

type fakeListings struct {
	popularLimit int
	search       [3]any
	rows         map[model.ListingType]map[uint64]model.Listing
	err          error
}

func (f *fakeListings) Popular(_ context.Context, limit int) ([]model.Listing, error) {
	f.popularLimit = limit
	return []model.Listing{{ID: 1, Type: model.TypeProperty, Name: "Villa", ImageURLs: []string{}}}, f.err
}

func (f *fakeListings) Search(_ context.Context, q, loc string, limit int) ([]model.Listing, error) {
	f.search = [3]any{q, loc, limit}
	return []model.Listing{}, f.err
}

func (f *fakeListings) Latest(_ context.Context, _ model.ListingType, _ int) ([]model.Listing, error) {
	return []model.Listing{}, f.err
}

func (f *fakeListings) Get(_ context.Context, kind model.ListingType, id uint64) (model.Listing, error) {
	if f.err != nil {
		return model.Listing{}, f.err
	}
	l, ok := f.rows[kind][id]
	if !ok {
		return model.Listing{}, apperr.NotFound("Not found")
	}
	return l, nil
}

func listingEcho(f *fakeListings, legacy bool) *echo.Echo {
	e := newEcho()
	h := NewListingHandler(f, legacy)
	e.GET("/listings/popular", h.Popular)
	e.GET("/listings/search", h.Search)
	e.GET("/properties", h.Properties)
	e.GET("/properties/:id", h.Detail(model.TypeProperty))
	e.GET("/land/:id", h.Detail(model.TypeLand))
	return e
}

func TestListingHandler_QueryParams(t *testing.T) {
	f := &fakeListings{}
	e := listingEcho(f, true)

	rec := do(e, http.MethodGet, "/listings/popular?limit=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.popularLimit)
	rows := decode[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "property", rows[0]["type"])
	assert.Nil(t, rows[0]["price"])

	do(e, http.MethodGet, "/listings/popular?limit=abc", "")
	assert.Equal(t, 0, f.popularLimit)

	rec = do(e, http.MethodGet, "/listings/search?q=villa&location=Sea%20side&limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
	assert.Equal(t, [3]any{"villa", "Sea side", 5}, f.search)
}

func TestListingHandler_Detail(t *testing.T) {
	f := &fakeListings{rows: map[model.ListingType]map[uint64]model.Listing{
		model.TypeLand: {4: {ID: 4, Type: model.TypeLand, Name: "Plot", ImageURLs: []string{}}},
	}}

	legacy := listingEcho(f, true)
	rec := do(legacy, http.MethodGet, "/land/4", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Plot", decode[model.Listing](t, rec).Name)

	rec = do(legacy, http.MethodGet, "/properties/4", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = do(legacy, http.MethodGet, "/properties/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	strict := listingEcho(f, false)
	rec = do(strict, http.MethodGet, "/properties/4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode[errorEnvelope](t, rec).Message)
}

func TestListingHandler_StorageFailure(t *testing.T) {
	f := &fakeListings{err: apperr.Storage(errors.New("timeout"), "popular listings")}
	rec := do(listingEcho(f, true), http.MethodGet, "/properties", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, genericServerError, decode[errorEnvelope](t, rec).Message)
}
