package models

// UserSummary is the author shape embedded in posts, comments, and replies.
// It mirrors what the upstream API returns for a user reference; the full
// profile lives behind the excluded user service.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
