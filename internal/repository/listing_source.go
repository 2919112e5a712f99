package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/estate-listings/internal/model"
)

// tableMapping describes how one table maps onto the common Listing
// projection.  Every field is a compile-time constant.
type tableMapping struct {
	kind       model.ListingType
	name       string
	price      string // column or NULL
	priceRange string // column or NULL
	popular    string // WHERE clause for the popular query
}

var (
	propertyTable = tableMapping{
		kind:       model.TypeProperty,
		name:       "properties",
		price:      "price",
		priceRange: "price_range",
		popular:    "price IS NOT NULL",
	}
	// Projects carry a price range instead of a price, so every row is a
	// popular candidate and sorts after the priced kinds.
	projectTable = tableMapping{
		kind:       model.TypeProject,
		name:       "projects",
		price:      "NULL",
		priceRange: "price_range",
		popular:    "1=1",
	}
	landTable = tableMapping{
		kind:       model.TypeLand,
		name:       "lands",
		price:      "price",
		priceRange: "price_range",
		popular:    "price IS NOT NULL",
	}
)

// ListingSource reads one listing kind from MySQL.
type ListingSource struct {
	db    *sql.DB
	table tableMapping
}

// NewPropertySource reads the properties table.
func NewPropertySource(db *sql.DB) *ListingSource {
	return &ListingSource{db: db, table: propertyTable}
}

// NewProjectSource reads the projects table.
func NewProjectSource(db *sql.DB) *ListingSource { return &ListingSource{db: db, table: projectTable} }

// NewLandSource reads the lands table.
func NewLandSource(db *sql.DB) *ListingSource { return &ListingSource{db: db, table: landTable} }

// Kind reports which listing type the source produces.
func (s *ListingSource) Kind() model.ListingType { return s.table.kind }

func (s *ListingSource) selectList() string {
	return fmt.Sprintf(`SELECT id, name, %s AS price, %s AS price_range, image_urls,
		location_city, location_neighborhood, sq_ft_or_area, details, created_at
		FROM %s`, s.table.price, s.table.priceRange, s.table.name)
}

// Popular returns up to limit rows ordered by price descending with nulls
// last; equal prices fall back to id ascending.
func (s *ListingSource) Popular(ctx context.Context, limit int) ([]model.Listing, error) {
	q := s.selectList() + `
		WHERE ` + s.table.popular + `
		ORDER BY ` + s.table.price + ` IS NULL, ` + s.table.price + ` DESC, id ASC
		LIMIT ?`
	return s.query(ctx, q, limit)
}

// Search returns up to limit rows matching every predicate, newest first.
func (s *ListingSource) Search(ctx context.Context, preds []Predicate, limit int) ([]model.Listing, error) {
	cond, args := And(preds...)
	q := s.selectList() + `
		WHERE ` + cond + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	return s.query(ctx, q, append(args, limit)...)
}

// GetByID returns a single row or ErrListingNotFound.
func (s *ListingSource) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	rows, err := s.query(ctx, s.selectList()+`
		WHERE id = ?
		LIMIT 1`, id)
	if err != nil {
		return model.Listing{}, err
	}
	if len(rows) == 0 {
		return model.Listing{}, ErrListingNotFound
	}
	return rows[0], nil
}

func (s *ListingSource) query(ctx context.Context, q string, args ...any) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Listing{}
	for rows.Next() {
		l, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ListingSource) scan(rows *sql.Rows) (model.Listing, error) {
	var (
		l            model.Listing
		price        sql.NullFloat64
		priceRange   sql.NullString
		images       []byte
		city         sql.NullString
		neighborhood sql.NullString
		area         sql.NullFloat64
		details      sql.NullString
	)
	if err := rows.Scan(&l.ID, &l.Name, &price, &priceRange, &images,
		&city, &neighborhood, &area, &details, &l.CreatedAt); err != nil {
		return model.Listing{}, err
	}
	l.Type = s.table.kind
	l.Price = nullFloat(price)
	l.PriceRange = nullString(priceRange)
	l.LocationCity = nullString(city)
	l.LocationNeighborhood = nullString(neighborhood)
	l.SqFtOrArea = nullFloat(area)
	l.Details = nullString(details)
	l.ImageURLs = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &l.ImageURLs); err != nil {
			return model.Listing{}, errors.Join(fmt.Errorf("%s %d: image_urls", s.table.name, l.ID), err)
		}
	}
	return l, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
