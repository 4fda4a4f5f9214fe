package enums

import "fmt"

// LineItemOwner names the kind of record a line item list hangs off.
type LineItemOwner string

const (
	LineItemOwnerQuote     LineItemOwner = "quote"
	LineItemOwnerPartsList LineItemOwner = "parts_list"
)

func (o LineItemOwner) IsValid() bool {
	return o == LineItemOwnerQuote || o == LineItemOwnerPartsList
}

func ParseLineItemOwner(value string) (LineItemOwner, error) {
	o := LineItemOwner(value)
	if !o.IsValid() {
		return "", fmt.Errorf("invalid line item owner %q", value)
	}
	return o, nil
}
