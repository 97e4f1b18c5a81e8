// Package sorting selects deterministic comparators for the comment list.
// Sorting applies to comments only; replies always keep their list order.
package sorting

import (
	"sort"

	"pitboard/internal/models"
)

// Key names a comment ordering.
type Key string

const (
	Newest      Key = "newest"
	Oldest      Key = "oldest"
	MostLiked   Key = "most_liked"
	MostReplies Key = "most_replies"
)

// Default is the ordering applied before the user picks anything.
const Default = Newest

// Valid reports whether k names a known ordering.
func (k Key) Valid() bool {
	switch k {
	case Newest, Oldest, MostLiked, MostReplies:
		return true
	}
	return false
}

// Sorted returns a sorted copy of the comment list. The input is never
// mutated. The sort is stable, so ties keep their original relative order.
// Unknown keys fall back to the default ordering.
func Sorted(comments []models.Comment, key Key) []models.Comment {
	out := make([]models.Comment, len(comments))
	copy(out, comments)

	less := lessFunc(key)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func lessFunc(key Key) func(a, b models.Comment) bool {
	switch key {
	case Oldest:
		return func(a, b models.Comment) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case MostLiked:
		return func(a, b models.Comment) bool {
			return len(a.Likes) > len(b.Likes)
		}
	case MostReplies:
		return func(a, b models.Comment) bool {
			return len(a.Replies) > len(b.Replies)
		}
	default:
		return func(a, b models.Comment) bool {
			return a.CreatedAt.After(b.CreatedAt)
		}
	}
}
