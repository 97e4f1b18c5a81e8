// Package models contains data structures for the application's domain models.
package models

import "time"

// Post is the aggregate root for one viewed feed item: the post itself plus
// its ordered comment tree. A Post is owned by exactly one feed session; it is
// created when the session opens and replaced wholesale by a fresh fetch.
type Post struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Author    UserSummary `json:"author"`
	MediaURLs []string    `json:"media_urls,omitempty"`
	// Likes is a set of user ids. Upstream responses sometimes carry raw user
	// objects here; Normalize flattens them to ids and deduplicates.
	Likes     []string  `json:"likes"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Comments  []Comment `json:"comments"`
}

// Normalize returns a copy of p with the like set deduplicated and every
// nested comment/reply normalized the same way. Safe on a zero Post.
func (p Post) Normalize() Post {
	p.Likes = dedupeIDs(p.Likes)
	if len(p.Comments) > 0 {
		comments := make([]Comment, len(p.Comments))
		for i, c := range p.Comments {
			comments[i] = c.Normalize()
		}
		p.Comments = comments
	}
	return p
}

// CommentCount returns the number of comments currently in the aggregate.
func (p Post) CommentCount() int { return len(p.Comments) }

func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
