package generator

// Niche is one content category posts can be generated for.
type Niche struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Niches is the catalog clients pick from.
var Niches = []Niche{
	{ID: "history", Name: "History"},
	{ID: "science", Name: "Science"},
	{ID: "tech", Name: "Technology"},
	{ID: "health", Name: "Health & Wellness"},
	{ID: "business", Name: "Business & Entrepreneurship"},
	{ID: "finance", Name: "Finance & Investing"},
	{ID: "crypto", Name: "Cryptocurrency"},
	{ID: "marketing", Name: "Marketing"},
	{ID: "social", Name: "Social Media"},
	{ID: "psychology", Name: "Psychology"},
	{ID: "education", Name: "Education"},
	{ID: "motivation", Name: "Motivation & Productivity"},
	{ID: "fun", Name: "Fun & Entertainment"},
	{ID: "facts", Name: "Interesting Facts"},
	{ID: "quotes", Name: "Quotes & Inspiration"},
	{ID: "art", Name: "Art & Design"},
	{ID: "travel", Name: "Travel & Adventure"},
	{ID: "food", Name: "Food & Cooking"},
	{ID: "sports", Name: "Sports & Fitness"},
	{ID: "books", Name: "Books & Literature"},
}

// KnownNiche reports whether id is in the catalog.
func KnownNiche(id string) bool {
	for _, n := range Niches {
		if n.ID == id {
			return true
		}
	}
	return false
}
