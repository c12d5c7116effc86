// Package schema defines the JSON request and response bodies of the Pawgram API.
package schema

// Account is the public view of a user. The password hash never leaves the server.
type Account struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio"`
}

// Credentials is the body of /register and /login.
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned by a successful /login.
type LoginResponse struct {
	Token string  `json:"token"`
	User  Account `json:"user"`
}

// ProfileUpdate is the body of PUT /users/profile.
// Empty fields are left unchanged.
type ProfileUpdate struct {
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio"`
}

// UserInfo is returned by GET /users/:username.
type UserInfo struct {
	User  Account `json:"user"`
	Posts []Post  `json:"posts"`
}

// Message is the generic success body.
type Message struct {
	Message string `json:"message"`
}

// ErrorResponse is the generic failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClientConfig is returned by GET /config.
type ClientConfig struct {
	APIURL string `json:"apiUrl"`
}
