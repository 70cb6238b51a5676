// Package model defines the data structures used throughout the application.
// Structs here are plain data: no storage or HTTP knowledge lives in this package.
package model

import "time"

// Status controls whether a post shows up in public listings.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Category is the closed set of post categories offered by the editor.
type Category string

const (
	CategoryDestination Category = "Destination"
	CategoryCulinary    Category = "Culinary"
	CategoryLifestyle   Category = "Lifestyle"
	CategoryTipsHacks   Category = "Tips & Hacks"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryDestination,
	CategoryCulinary,
	CategoryLifestyle,
	CategoryTipsHacks,
}

// Valid reports whether c belongs to Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Post is a blog post. Its ID is the author-chosen slug.
//
// CONTENT OVERFLOW:
// Long content does not live in the row. When the HTML body is longer than
// the inline threshold, the full text is stored as a file and Content keeps
// only a short preview ending in "...". ContentID points at that file and is
// empty whenever Content holds the full text.
type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	ContentID     string    `json:"contentId,omitempty"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Status        Status    `json:"status"`
	UserID        string    `json:"userId"`
	Category      Category  `json:"category"`
	LikeCount     int       `json:"likeCount"`
	LikedBy       []string  `json:"likedBy"`
	Views         int       `json:"views"`
	ReadTime      int       `json:"readTime"` // minutes
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasLiker reports whether userID is in the post's liker list.
func (p *Post) HasLiker(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Sort orders post listings.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortOldest    Sort = "oldest"
	SortPopular   Sort = "popular" // most viewed first
	SortMostLiked Sort = "liked"
)

// Valid reports whether s is a known sort order. The empty value is valid
// and means SortNewest.
func (s Sort) Valid() bool {
	switch s {
	case "", SortNewest, SortOldest, SortPopular, SortMostLiked:
		return true
	}
	return false
}
