package schema

import "time"

// Post is a published photo. Username and ProfilePicture are copied from the
// author's account when the post is created and are never refreshed.
type Post struct {
	ID             string     `json:"_id"`
	Username       string     `json:"username"`
	ProfilePicture string     `json:"profilePicture"`
	Image          string     `json:"image"`
	Caption        string     `json:"caption"`
	Reactions      []Reaction `json:"reactions"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Reaction is one user's reaction to a post. A post holds at most one
// reaction per username.
type Reaction struct {
	Username string `json:"username"`
	Type     string `json:"type"`
}

// NewPost is the body of POST /posts.
type NewPost struct {
	Image   string `json:"image"`
	Caption string `json:"caption"`
}

// ReactionRequest is the body of POST /posts/:postId/reactions.
type ReactionRequest struct {
	Type string `json:"type"`
}

// ReactionResponse is returned after a reaction is stored.
type ReactionResponse struct {
	Message string `json:"message"`
	Post    Post   `json:"post"`
}
