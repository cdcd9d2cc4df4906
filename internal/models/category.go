package models

// The category set is closed; no table lookup backs it.
const (
	MinCategoryID = 1
	MaxCategoryID = 6
)

var categoryNames = map[int]string{
	1: "Technology",
	2: "Literature",
	3: "Science",
	4: "History",
	5: "Comics",
	6: "Other",
}

// ValidCategory reports whether id is one of the fixed categories.
func ValidCategory(id int) bool {
	return id >= MinCategoryID && id <= MaxCategoryID
}

// CategoryName returns the display name for id, or "Unknown".
func CategoryName(id *int) string {
	if id == nil {
		return "Unknown"
	}
	if name, ok := categoryNames[*id]; ok {
		return name
	}
	return "Unknown"
}
