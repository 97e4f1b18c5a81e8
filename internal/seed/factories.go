// Package seed builds demo data for the in-memory upstream. These helpers
// are intended for development and the simulator only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"pitboard/internal/models"
	"pitboard/internal/transport"
)

// Options tunes how much data a factory generates.
type Options struct {
	Posts           int
	CommentsPerPost int
	MaxReplies      int
	MaxLikers       int
	// Seed fixes the random source for reproducible runs; zero means
	// time-based.
	Seed int64
}

// DefaultOptions covers a demo feed big enough to exercise paging.
func DefaultOptions() Options {
	return Options{
		Posts:           3,
		CommentsPerPost: 25,
		MaxReplies:      8,
		MaxLikers:       12,
	}
}

// Factory builds fake domain entities with realistic spreads.
type Factory struct {
	rng    *rand.Rand
	nextID int
}

// NewFactory creates a factory seeded from opts.
func NewFactory(opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{rng: rand.New(rand.NewSource(seed)), nextID: 1}
}

// BuildUser constructs a sample user summary.
func (f *Factory) BuildUser() models.UserSummary {
	f.nextID++
	return models.UserSummary{
		ID:        fmt.Sprintf("user-%d", f.nextID),
		Username:  gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
}

// BuildPost constructs a post with comments, replies, and like sets drawn
// from the given user pool. Timestamps spread backwards from now so the
// newest-first ordering has real structure.
func (f *Factory) BuildPost(users []models.UserSummary, opts Options) models.Post {
	f.nextID++
	author := users[f.rng.Intn(len(users))]
	created := time.Now().Add(-time.Duration(f.rng.Intn(72)) * time.Hour)

	post := models.Post{
		ID:        fmt.Sprintf("post-%d", f.nextID),
		Content:   gofakeit.Paragraph(1, 3, 8, "\n"),
		Author:    author,
		MediaURLs: []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())},
		Likes:     f.pickLikers(users, opts.MaxLikers),
		Views:     gofakeit.Number(50, 5000),
		CreatedAt: created,
		UpdatedAt: created,
	}

	for i := 0; i < opts.CommentsPerPost; i++ {
		post.Comments = append(post.Comments, f.buildComment(users, created, opts))
	}
	return post.Normalize()
}

func (f *Factory) buildComment(users []models.UserSummary, after time.Time, opts Options) models.Comment {
	f.nextID++
	created := after.Add(time.Duration(f.rng.Intn(3600)) * time.Second)
	c := models.Comment{
		ID:        fmt.Sprintf("cmt-%d", f.nextID),
		Content:   gofakeit.Sentence(f.rng.Intn(12) + 3),
		Author:    users[f.rng.Intn(len(users))],
		Likes:     f.pickLikers(users, opts.MaxLikers/2),
		CreatedAt: created,
		UpdatedAt: created,
	}
	if opts.MaxReplies > 0 {
		for i := 0; i < f.rng.Intn(opts.MaxReplies+1); i++ {
			c.Replies = append(c.Replies, f.buildReply(users, created, opts))
		}
	}
	return c
}

func (f *Factory) buildReply(users []models.UserSummary, after time.Time, opts Options) models.Reply {
	f.nextID++
	created := after.Add(time.Duration(f.rng.Intn(1800)) * time.Second)
	return models.Reply{
		ID:        fmt.Sprintf("rpl-%d", f.nextID),
		Content:   gofakeit.Sentence(f.rng.Intn(8) + 2),
		Author:    users[f.rng.Intn(len(users))],
		Likes:     f.pickLikers(users, opts.MaxLikers/3),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func (f *Factory) pickLikers(users []models.UserSummary, max int) []string {
	if max < 1 {
		return nil
	}
	n := f.rng.Intn(max + 1)
	likes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		likes = append(likes, users[f.rng.Intn(len(users))].ID)
	}
	return likes
}

// Populate fills the in-memory upstream with users and posts and returns the
// seeded post ids.
func Populate(client *transport.MemoryClient, opts Options) []string {
	f := NewFactory(opts)

	userCount := opts.MaxLikers
	if userCount < 4 {
		userCount = 4
	}
	users := make([]models.UserSummary, 0, userCount)
	for i := 0; i < userCount; i++ {
		u := f.BuildUser()
		users = append(users, u)
		client.SeedUser(u)
	}

	ids := make([]string, 0, opts.Posts)
	for i := 0; i < opts.Posts; i++ {
		p := f.BuildPost(users, opts)
		client.SeedPost(p)
		ids = append(ids, p.ID)
	}
	return ids
}
