// Command feedsim replays optimistic mutation scenarios against a seeded
// in-memory upstream and prints the resulting views. Useful for eyeballing
// engine behavior without standing up the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"pitboard/internal/feed"
	"pitboard/internal/models"
	"pitboard/internal/seed"
	"pitboard/internal/transport"
)

func main() {
	var (
		posts      = flag.Int("posts", 1, "number of posts to seed")
		comments   = flag.Int("comments", 25, "comments per post")
		rngSeed    = flag.Int64("seed", 1, "random seed for generated data")
		idempotent = flag.Bool("idempotent-toggles", false, "upstream coalesces double like-toggles")
	)
	flag.Parse()

	upstream := transport.NewMemoryClient()
	if *idempotent {
		upstream.SetToggleMode(transport.ToggleIdempotent)
	}
	ids := seed.Populate(upstream, seed.Options{
		Posts:           *posts,
		CommentsPerPost: *comments,
		MaxReplies:      8,
		MaxLikers:       12,
		Seed:            *rngSeed,
	})

	viewer := models.UserSummary{ID: "sim-viewer", Username: "simviewer"}
	ctx := context.Background()

	session, err := feed.Open(ctx, upstream, ids[0], viewer, feed.DefaultConfig())
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	defer session.Close()

	printView("initial view", session)

	fmt.Println("\n--- submit a comment (succeeds) ---")
	if err := session.SubmitComment(ctx, "Watching this setup too, thanks for the levels."); err != nil {
		log.Printf("submit: %v", err)
	}
	printView("after submit", session)

	fmt.Println("\n--- submit a comment while offline (fails, entry flagged) ---")
	upstream.FailNext(transport.OpSubmitComment, models.NewNetworkError(nil))
	if err := session.SubmitComment(ctx, "This one never reaches the server."); err != nil {
		fmt.Printf("dispatch error: %v\n", err)
	}
	printView("after failed submit", session)

	fmt.Println("\n--- like toggle that the server rejects (silent revert) ---")
	target := session.View().Comments[1].ID
	upstream.FailNext(transport.OpToggleCommentLike, models.NewNetworkError(nil))
	if err := session.ToggleCommentLike(ctx, target); err != nil {
		fmt.Printf("dispatch error: %v\n", err)
	}
	printView("after reverted like", session)

	fmt.Println("\n--- walk the comment pages ---")
	for session.LoadMoreComments() {
	}
	printView("last page", session)

	fmt.Println("\n--- expand the first comment's replies ---")
	first := session.View().Comments[0].ID
	session.ToggleReplies(first)
	session.LoadMoreReplies(first)
	printView("expanded replies", session)
}

func printView(label string, s *feed.Session) {
	v := s.View()
	fmt.Printf("[%s] post=%s page=%d/%d showing=%d of %d sort=%s",
		label, v.PostID, v.CommentInfo.CurrentPage,
		(v.CommentInfo.Total+9)/10, v.CommentInfo.DisplayedCount,
		v.CommentInfo.Total, v.SortKey)
	if v.Error != "" {
		fmt.Printf(" error=%q", v.Error)
	}
	fmt.Println()
	for _, c := range v.Comments {
		marker := " "
		switch {
		case c.Failed:
			marker = "!"
		case c.Sending:
			marker = "~"
		}
		fmt.Printf("  %s %-10s %-18s likes=%d replies=%d %q\n",
			marker, c.ID, c.Author.Username, len(c.Likes), len(c.Replies), truncate(c.Content, 48))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
