package enums

import "strings"

type ProductType string

const (
	ProductCourse ProductType = "course"
	ProductChat   ProductType = "chat"
	ProductCombo  ProductType = "combo"
)

// ParseProductType normalizes raw client input. Unknown values fall back to
// course, matching the historical behavior of the payment API.
func ParseProductType(raw string) ProductType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ProductChat):
		return ProductChat
	case string(ProductCombo):
		return ProductCombo
	default:
		return ProductCourse
	}
}

// GrantsChatAccess reports whether the product includes the support chat.
func (p ProductType) GrantsChatAccess() bool {
	return p == ProductChat || p == ProductCombo
}

// GrantsCourseAccess reports whether the product includes course content.
func (p ProductType) GrantsCourseAccess() bool {
	return p == ProductCourse || p == ProductCombo
}
