package models

// Category is the spending category assigned to receipts and line items.
// Codes are stable and stored in the database as integers.
type Category int

const (
	CategoryGroceries Category = iota + 1
	CategoryApparel
	CategoryDiningOut
	CategoryElectronics
	CategorySupplies
	CategoryHealthcare
	CategoryHome
	CategoryUtilities
	CategoryTransportation
	CategoryInsurance
	CategoryPersonalCare
	CategorySubscriptions
	CategoryEntertainment
	CategoryEducation
	CategoryPets
	CategoryTravel
	CategoryOther
)

var categoryNames = map[Category]string{
	CategoryGroceries:      "Groceries",
	CategoryApparel:        "Apparel",
	CategoryDiningOut:      "Dining Out",
	CategoryElectronics:    "Electronics",
	CategorySupplies:       "Supplies",
	CategoryHealthcare:     "Healthcare",
	CategoryHome:           "Home",
	CategoryUtilities:      "Utilities",
	CategoryTransportation: "Transportation",
	CategoryInsurance:      "Insurance",
	CategoryPersonalCare:   "Personal Care",
	CategorySubscriptions:  "Subscriptions",
	CategoryEntertainment:  "Entertainment",
	CategoryEducation:      "Education",
	CategoryPets:           "Pets",
	CategoryTravel:         "Travel",
	CategoryOther:          "Other",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

func (c Category) Valid() bool {
	return c >= CategoryGroceries && c <= CategoryOther
}

// AllCategories returns every category in code order.
func AllCategories() []Category {
	out := make([]Category, 0, len(categoryNames))
	for c := CategoryGroceries; c <= CategoryOther; c++ {
		out = append(out, c)
	}
	return out
}
