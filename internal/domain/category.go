package domain

import "strings"

// Category identifies one of the three reels
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
)

// Categories lists every reel in display order
var Categories = []Category{CategoryA, CategoryB, CategoryC}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// Placeholder is the label a reel shows before its first spin
func (c Category) Placeholder() string {
	return string(c)
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryA, CategoryB, CategoryC:
		return true
	}
	return false
}

// ParseCategory converts user input into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}
