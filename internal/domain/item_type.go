package domain

// ItemType names one of the listable record collections.
type ItemType string

const (
	ItemTypeRequirements ItemType = "requirements"
	ItemTypeBugs         ItemType = "bugs"
	ItemTypeQueries      ItemType = "queries"
)

// ParseItemType returns the ItemType for s and whether it is known.
// Matching is exact; the classifier is instructed to emit these values.
func ParseItemType(s string) (ItemType, bool) {
	switch t := ItemType(s); t {
	case ItemTypeRequirements, ItemTypeBugs, ItemTypeQueries:
		return t, true
	default:
		return "", false
	}
}
