package normalize

import (
	"fmt"
	"sort"
)

// Field names understood by the booking normalizer.
const (
	BookingID          = "bookingId"
	BookingOfferID     = "offerId"
	BookingServiceKind = "serviceKind"
	BookingTitle       = "title"
	BookingImage       = "image"
	BookingLocation    = "location"
	BookingPrice       = "price"
	BookingTotalPrice  = "totalPrice"
	BookingCreatedAt   = "createdAt"
	BookingStatus      = "status"
	BookingStart       = "startDate"
	BookingEnd         = "endDate"
	BookingAdults      = "adults"
	BookingChildren    = "children"
	BookingRooms       = "rooms"
	BookingGateway     = "gateway"
)

// Field names understood by the listing normalizer.
const (
	ListingID          = "id"
	ListingKind        = "kind"
	ListingTitle       = "title"
	ListingLocation    = "location"
	ListingImage       = "image"
	ListingPrice       = "price"
	ListingSalePrice   = "salePrice"
	ListingRating      = "rating"
	ListingReviewCount = "reviewCount"
	ListingFeatured    = "featured"
)

// Rules maps a canonical field to the ordered list of payload paths that
// may carry it. Paths use dots to reach into nested objects. The first
// path holding a non-null value wins.
type Rules map[string][]string

// RuleSet groups the rules of every normalized record type.
type RuleSet struct {
	Booking Rules `yaml:"booking"`
	Listing Rules `yaml:"listing"`
}

// DefaultRules returns the extraction rules for the payload variants the
// backend deployments are known to produce.
func DefaultRules() RuleSet {
	return RuleSet{
		Booking: Rules{
			BookingID:          {"code", "booking_code", "bookingId", "id"},
			BookingOfferID:     {"object_id", "offerId", "service_id", "service.id"},
			BookingServiceKind: {"object_model", "service_type", "serviceKind", "type"},
			BookingTitle:       {"service.title", "title", "object.title", "name"},
			BookingImage:       {"service.image", "image", "image_url", "service.banner_image"},
			BookingLocation:    {"service.location.name", "location.name", "location", "address"},
			BookingPrice:       {"price", "service.price", "total", "totalPrice"},
			BookingTotalPrice:  {"total", "totalPrice", "total_price", "pay_now"},
			BookingCreatedAt:   {"created_at", "createdAt", "booking_date"},
			BookingStatus:      {"status", "booking_status"},
			BookingStart:       {"start_date", "check_in", "startDate", "dates.start"},
			BookingEnd:         {"end_date", "check_out", "endDate", "dates.end"},
			BookingAdults:      {"adults", "guests.adults", "total_guests"},
			BookingChildren:    {"children", "guests.children"},
			BookingRooms:       {"rooms", "guests.rooms", "number_of_rooms"},
			BookingGateway:     {"gateway", "payment_gateway"},
		},
		Listing: Rules{
			ListingID:          {"id", "object_id", "service_id"},
			ListingKind:        {"object_model", "service_type", "type", "kind"},
			ListingTitle:       {"title", "name"},
			ListingLocation:    {"location.name", "location", "address"},
			ListingImage:       {"image", "image_url", "banner_image", "gallery.0"},
			ListingPrice:       {"price", "min_price", "totalPrice", "total"},
			ListingSalePrice:   {"sale_price", "salePrice", "discount_price"},
			ListingRating:      {"review_score.score_total", "review_score", "rating", "score"},
			ListingReviewCount: {"review_score.total_review", "review_count", "reviews"},
			ListingFeatured:    {"is_featured", "featured"},
		},
	}
}

// Merge appends the overlay's candidate paths after the receiver's, so
// new payload variants never shadow known ones. Unknown field names are
// rejected.
func (rs RuleSet) Merge(overlay RuleSet) (RuleSet, error) {
	booking, err := mergeRules("booking", rs.Booking, overlay.Booking)
	if err != nil {
		return RuleSet{}, err
	}
	listing, err := mergeRules("listing", rs.Listing, overlay.Listing)
	if err != nil {
		return RuleSet{}, err
	}
	return RuleSet{Booking: booking, Listing: listing}, nil
}

func mergeRules(section string, base, extra Rules) (Rules, error) {
	out := make(Rules, len(base))
	for field, paths := range base {
		out[field] = append([]string(nil), paths...)
	}

	fields := make([]string, 0, len(extra))
	for field := range extra {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		existing, ok := out[field]
		if !ok {
			return nil, fmt.Errorf("unknown %s field %q in extraction rules", section, field)
		}
		seen := make(map[string]bool, len(existing))
		for _, p := range existing {
			seen[p] = true
		}
		for _, p := range extra[field] {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			existing = append(existing, p)
		}
		out[field] = existing
	}
	return out, nil
}
