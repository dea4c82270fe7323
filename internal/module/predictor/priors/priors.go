// Package priors holds the immutable Category Prior Table: the only
// process-wide state in the predictor, loaded once at startup and never
// mutated afterward.
package priors

// Prior is a category's default cycle-length estimate, used to seed a
// Predictor State the first time an (household, product) pair is seen.
type Prior struct {
	MeanDays float64
	MADDays  float64
}

// fallback is returned for an unrecognised or missing category id.
var fallback = Prior{MeanDays: 7.0, MADDays: 2.0}

// table is the canonical category prior table. Keys are category names
// for readability; callers key by whatever category id their catalog
// uses as long as it resolves to one of these names upstream, or they
// pass category ids directly if their catalog already uses these keys.
var table = map[string]Prior{
	"Dairy & Eggs":         {MeanDays: 5.0, MADDays: 2.0},
	"Bread & Bakery":       {MeanDays: 4.0, MADDays: 1.5},
	"Meat & Poultry":       {MeanDays: 4.0, MADDays: 2.0},
	"Fish & Seafood":       {MeanDays: 3.0, MADDays: 1.5},
	"Fruits":               {MeanDays: 6.0, MADDays: 2.5},
	"Vegetables":           {MeanDays: 5.0, MADDays: 2.0},
	"Grains & Pasta":       {MeanDays: 35.0, MADDays: 10.0},
	"Canned & Jarred":      {MeanDays: 75.0, MADDays: 15.0},
	"Condiments & Sauces":  {MeanDays: 45.0, MADDays: 15.0},
	"Snacks":               {MeanDays: 10.0, MADDays: 5.0},
	"Beverages":            {MeanDays: 7.0, MADDays: 3.0},
	"Frozen Foods":         {MeanDays: 45.0, MADDays: 15.0},
	"Spices & Seasonings":  {MeanDays: 75.0, MADDays: 20.0},
}

// Table is a read-only handle over the category prior map. It is passed
// by value into constructors rather than looked up through a package
// singleton, per the "no global state beyond this table" rule.
type Table struct {
	entries map[string]Prior
}

// NewTable returns a handle over the canonical category prior table.
func NewTable() Table {
	return Table{entries: table}
}

// Lookup returns the prior for categoryID, or the (7.0, 2.0) fallback
// when categoryID is empty or unrecognised.
func (t Table) Lookup(categoryID string) Prior {
	if categoryID == "" {
		return fallback
	}
	if p, ok := t.entries[categoryID]; ok {
		return p
	}
	return fallback
}

// Fallback returns the default prior used for unknown categories.
func (t Table) Fallback() Prior {
	return fallback
}
