package dto

// BookRequest: payload for creating or updating a catalog entry. Available is
// not accepted from clients; it is derived from Total and open loans.
type BookRequest struct {
	Title         string `json:"title" binding:"required,max=300"`
	Author        string `json:"author" binding:"required,max=300"`
	ISBN          string `json:"isbn,omitempty"`
	Category      string `json:"category,omitempty"`
	Total         int    `json:"total" binding:"required,min=1"`
	CoverImage    string `json:"cover_image,omitempty"`
	PublishedYear int    `json:"published_year,omitempty"`
	Description   string `json:"description,omitempty"`
}
