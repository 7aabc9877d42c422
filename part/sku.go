package part

import "strings"

// SKU addresses a product variant on four nested levels. An empty level is
// absent; absence is a distinguishable value when matching.
type SKU struct {
	Product      string `json:"product" bson:"product"`
	Offer        string `json:"offer,omitempty" bson:"offer,omitempty"`
	Variation    string `json:"variation,omitempty" bson:"variation,omitempty"`
	Modification string `json:"modification,omitempty" bson:"modification,omitempty"`
}

// Matches is exact tuple equality. A level absent on one side never
// matches a level present on the other.
func (s SKU) Matches(other SKU) bool {
	return s.Product == other.Product &&
		s.Offer == other.Offer &&
		s.Variation == other.Variation &&
		s.Modification == other.Modification
}

// Identifier returns the most specific level that is present.
func (s SKU) Identifier() string {
	switch {
	case s.Modification != "":
		return s.Modification
	case s.Variation != "":
		return s.Variation
	case s.Offer != "":
		return s.Offer
	default:
		return s.Product
	}
}

func (s SKU) Valid() bool {
	return strings.TrimSpace(s.Product) != ""
}

func (s SKU) String() string {
	parts := []string{s.Product, s.Offer, s.Variation, s.Modification}
	for i, p := range parts {
		if p == "" {
			parts[i] = "-"
		}
	}
	return strings.Join(parts, "/")
}
