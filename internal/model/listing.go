package model

import "time"

// ListingType discriminates the three record kinds merged into a Listing.
type ListingType string

const (
	TypeProperty ListingType = "property"
	TypeProject  ListingType = "project"
	TypeLand     ListingType = "land"
)

// Rank orders kinds when every other sort key ties.
func (t ListingType) Rank() int {
	switch t {
	case TypeProperty:
		return 0
	case TypeProject:
		return 1
	case TypeLand:
		return 2
	}
	return 3
}

// Listing is the common projection of a property, project or land row.
// Columns a kind does not have are null: projects never carry a price,
// properties and lands normally carry no price range.
type Listing struct {
	ID                   uint64      `json:"id"`
	Type                 ListingType `json:"type"`
	Name                 string      `json:"name"`
	Price                *float64    `json:"price"`
	PriceRange           *string     `json:"price_range"`
	ImageURLs            []string    `json:"image_urls"`
	LocationCity         *string     `json:"location_city"`
	LocationNeighborhood *string     `json:"location_neighborhood"`
	SqFtOrArea           *float64    `json:"sq_ft_or_area"`
	Details              *string     `json:"details"`
	CreatedAt            time.Time   `json:"created_at"`
}
