package analysis

import "strings"

// Category selects which extra fields the analysis asks for.
type Category string

// Supported categories. Anything else is analyzed as CategoryGeneral.
const (
	CategoryGeneral    Category = "general"
	CategoryRetail     Category = "retail"
	CategoryRestaurant Category = "restaurant"
	CategoryServices   Category = "services"
	CategorySaaS       Category = "saas"
)

// Field is one attribute the analysis service is asked to fill.
type Field struct {
	Name        string
	Kind        string
	Description string
}

var baseFields = []Field{
	{Name: "name", Kind: "string", Description: "business or site name"},
	{Name: "description", Kind: "string", Description: "one or two sentence summary of what the business does"},
	{Name: "tagline", Kind: "string", Description: "slogan or headline, if stated"},
	{Name: "products", Kind: "string[]", Description: "main products or offerings"},
	{Name: "services", Kind: "string[]", Description: "services offered"},
	{Name: "targetAudience", Kind: "string", Description: "who the business serves"},
	{Name: "uniqueSellingPoints", Kind: "string[]", Description: "stated differentiators"},
	{Name: "brandVoice", Kind: "string", Description: "tone of the site copy"},
	{Name: "contact", Kind: "object", Description: "{email, phone, address} as stated on the site"},
	{Name: "socialLinks", Kind: "string[]", Description: "social media profile URLs"},
	{Name: "faqs", Kind: "object[]", Description: "[{question, answer}] pairs found on the site"},
	{Name: "policies", Kind: "object", Description: "{shipping, returns, privacy} summaries if present"},
}

// ParseCategory maps a caller-supplied store type to a Category.
// Matching is case-insensitive; unknown or empty values become CategoryGeneral.
func ParseCategory(raw string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryRetail, CategoryRestaurant, CategoryServices, CategorySaaS:
		return c
	default:
		return CategoryGeneral
	}
}

// ExtraFields returns the fields appended to the base schema for c.
func (c Category) ExtraFields() []Field {
	switch c {
	case CategoryRetail:
		return []Field{
			{Name: "productCategories", Kind: "string[]", Description: "product categories or collections"},
			{Name: "priceRange", Kind: "string", Description: "typical price range"},
			{Name: "brands", Kind: "string[]", Description: "brands carried"},
			{Name: "promotions", Kind: "string[]", Description: "current sales or offers"},
		}
	case CategoryRestaurant:
		return []Field{
			{Name: "cuisine", Kind: "string[]", Description: "cuisine types"},
			{Name: "menuHighlights", Kind: "string[]", Description: "signature dishes or drinks"},
			{Name: "hours", Kind: "string", Description: "opening hours"},
			{Name: "reservations", Kind: "string", Description: "how to reserve a table"},
			{Name: "dietaryOptions", Kind: "string[]", Description: "vegetarian, vegan, gluten-free and similar options"},
		}
	case CategoryServices:
		return []Field{
			{Name: "serviceArea", Kind: "string", Description: "geographic area served"},
			{Name: "pricingModel", Kind: "string", Description: "hourly, fixed, quote-based and so on"},
			{Name: "credentials", Kind: "string[]", Description: "licenses, certifications, years in business"},
			{Name: "bookingProcess", Kind: "string", Description: "how customers book or request a quote"},
		}
	case CategorySaaS:
		return []Field{
			{Name: "features", Kind: "string[]", Description: "key product features"},
			{Name: "pricingTiers", Kind: "object[]", Description: "[{name, price, highlights}] plans"},
			{Name: "integrations", Kind: "string[]", Description: "third-party integrations"},
			{Name: "freeTrial", Kind: "string", Description: "free trial or freemium terms"},
		}
	case CategoryGeneral:
		return nil
	default:
		return nil
	}
}

// Fields returns the base schema followed by c's extra fields.
func (c Category) Fields() []Field {
	extra := c.ExtraFields()
	out := make([]Field, 0, len(baseFields)+len(extra))
	out = append(out, baseFields...)
	return append(out, extra...)
}
