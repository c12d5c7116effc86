package social

import (
	"github.com/celerix-dev/pawgram/pkg/schema"
)

// Profiles serves public user pages and profile edits.
type Profiles struct {
	accounts *Accounts
	posts    *Posts
}

// NewProfiles returns a profile service.
func NewProfiles(accounts *Accounts, posts *Posts) *Profiles {
	return &Profiles{accounts: accounts, posts: posts}
}

// Update edits the caller's own profile. Posts created earlier keep the
// avatar they were created with.
func (p *Profiles) Update(username string, upd schema.ProfileUpdate) (schema.Account, error) {
	return p.accounts.UpdateProfile(username, upd)
}

// UserInfo returns a user's public fields and posts, newest first.
func (p *Profiles) UserInfo(username string) (schema.UserInfo, error) {
	account, err := p.accounts.Get(username)
	if err != nil {
		return schema.UserInfo{}, err
	}
	posts, err := p.posts.ListByAuthor(account.Username)
	if err != nil {
		return schema.UserInfo{}, err
	}
	return schema.UserInfo{User: account, Posts: posts}, nil
}
