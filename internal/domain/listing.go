package domain

import "github.com/shopspring/decimal"

// Listing is a marketplace entity as shown in search results.
// ID is unique within an aggregated collection.
type Listing struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"kind"`
	Title       string          `json:"title"`
	Location    string          `json:"location"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"reviewCount"`
	Featured    bool            `json:"featured"`
}

// Raw is an undecoded remote record.
type Raw map[string]any

// Params are query parameters forwarded to the remote collection endpoint.
type Params map[string]string

// Clone returns a copy that can be modified without touching p.
func (p Params) Clone() Params {
	out := make(Params, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Page is one page of a remote collection.
type Page struct {
	Total      int   `json:"total"`
	TotalPages int   `json:"totalPages"`
	Data       []Raw `json:"data"`
}
