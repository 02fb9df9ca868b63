package ledger

// CategoryMap maps item names to categories.
type CategoryMap map[string]string

// Conflict records an item name saved under two different categories.
type Conflict struct {
	Name string

	// Previous is the category seen first; Kept is the later one, which wins.
	Previous string
	Kept     string
}

// BuildCategories derives the category map from rows in order. Rows without a
// category are ignored; when a name has several categories the last one wins
// and a Conflict is reported for each change.
func BuildCategories(rows []Row) (CategoryMap, []Conflict) {
	categories := make(CategoryMap)
	var conflicts []Conflict

	for _, row := range rows {
		if row.Category == "" {
			continue
		}
		if prev, ok := categories[row.Name]; ok && prev != row.Category {
			conflicts = append(conflicts, Conflict{
				Name:     row.Name,
				Previous: prev,
				Kept:     row.Category,
			})
		}
		categories[row.Name] = row.Category
	}

	return categories, conflicts
}
