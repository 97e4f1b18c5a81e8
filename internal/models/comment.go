package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProvisionalPrefix marks locally generated ids. The upstream never issues ids
// with this prefix, so the provisional namespace is disjoint by construction.
const ProvisionalPrefix = "tmp-"

// editedHeuristicWindow is the fallback window for deciding whether an entry
// was edited when the upstream sends no explicit flag. Inherited behavior;
// an explicit Edited flag always wins.
const editedHeuristicWindow = 60 * time.Second

// Comment belongs to exactly one Post and carries its own ordered reply list.
// A comment holds either a server-assigned id or a provisional id plus
// IsOptimistic=true, never both.
type Comment struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Author    UserSummary `json:"author"`
	Likes     []string    `json:"likes"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Edited    *bool       `json:"edited,omitempty"`
	Replies   []Reply     `json:"replies"`

	// Transient delivery state, meaningful only while the owning session lives.
	Sending      bool `json:"sending,omitempty"`
	Failed       bool `json:"failed,omitempty"`
	IsOptimistic bool `json:"is_optimistic,omitempty"`
}

// Reply belongs to exactly one Comment. Same shape as Comment, one level
// shallower: replies do not nest.
type Reply struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Author    UserSummary `json:"author"`
	Likes     []string    `json:"likes"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Edited    *bool       `json:"edited,omitempty"`

	Sending      bool `json:"sending,omitempty"`
	Failed       bool `json:"failed,omitempty"`
	IsOptimistic bool `json:"is_optimistic,omitempty"`
}

// Normalize returns a copy of c with its like set deduplicated and replies
// normalized.
func (c Comment) Normalize() Comment {
	c.Likes = dedupeIDs(c.Likes)
	if len(c.Replies) > 0 {
		replies := make([]Reply, len(c.Replies))
		for i, r := range c.Replies {
			replies[i] = r.Normalize()
		}
		c.Replies = replies
	}
	return c
}

// Normalize returns a copy of r with its like set deduplicated.
func (r Reply) Normalize() Reply {
	r.Likes = dedupeIDs(r.Likes)
	return r
}

// IsEdited reports whether the comment was edited after creation. The explicit
// flag from the upstream wins; otherwise fall back to comparing timestamps
// with a tolerance window.
func (c Comment) IsEdited() bool {
	if c.Edited != nil {
		return *c.Edited
	}
	return c.UpdatedAt.Sub(c.CreatedAt) > editedHeuristicWindow
}

// IsEdited reports whether the reply was edited after creation.
func (r Reply) IsEdited() bool {
	if r.Edited != nil {
		return *r.Edited
	}
	return r.UpdatedAt.Sub(r.CreatedAt) > editedHeuristicWindow
}

// NewProvisionalID generates a unique id in the reserved provisional
// namespace. Random UUIDs avoid the same-millisecond collisions a timestamp
// scheme allows under rapid submission.
func NewProvisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

// IsProvisionalID reports whether id belongs to the provisional namespace.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}
