// Package social implements Pawgram's accounts, posts, reactions and profiles
// on top of the document store.
package social

import (
	"strings"
	"time"
	"unicode"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/celerix-dev/pawgram/internal/engine"
	"github.com/celerix-dev/pawgram/internal/vault"
	"github.com/celerix-dev/pawgram/pkg/schema"
)

var logger = logrus.WithField("component", "social")

// DefaultAvatar is used for new accounts when no other default is configured.
const DefaultAvatar = "https://raw.githubusercontent.com/identicons/identicons/master/default.png"

const maxUsernameLen = 64

// reservedUsernames collide with static routes under /users.
var reservedUsernames = map[string]bool{"posts": true, "profile": true}

// accountDoc is the stored form of an account, keyed by username.
type accountDoc struct {
	Username       string    `json:"username"`
	PasswordHash   string    `json:"passwordHash"`
	ProfilePicture string    `json:"profilePicture"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (d accountDoc) public() schema.Account {
	return schema.Account{
		Username:       d.Username,
		ProfilePicture: d.ProfilePicture,
		Bio:            d.Bio,
	}
}

// Accounts is the credential store.
type Accounts struct {
	store         engine.DocStore
	clock         clock.Clock
	defaultAvatar string
}

// NewAccounts returns an account store. An empty defaultAvatar selects DefaultAvatar.
func NewAccounts(store engine.DocStore, clk clock.Clock, defaultAvatar string) *Accounts {
	if clk == nil {
		clk = clock.WallClock
	}
	if defaultAvatar == "" {
		defaultAvatar = DefaultAvatar
	}
	return &Accounts{store: store, clock: clk, defaultAvatar: defaultAvatar}
}

func validateUsername(username string) error {
	if username == "" || len(username) > maxUsernameLen || reservedUsernames[username] {
		return errors.NotValidf("username %q", username)
	}
	for _, r := range username {
		if r == '/' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.NotValidf("username %q", username)
		}
	}
	return nil
}

// Create registers a new account. The uniqueness check and the insert are a
// single store operation.
func (a *Accounts) Create(username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	hash, err := vault.HashPassword(password)
	if err != nil {
		return errors.Trace(err)
	}
	doc := accountDoc{
		Username:       username,
		PasswordHash:   hash,
		ProfilePicture: a.defaultAvatar,
		Bio:            "",
		CreatedAt:      a.clock.Now().UTC(),
	}
	err = engine.Insert(a.store, engine.Accounts, username, doc)
	if errors.Is(err, errors.AlreadyExists) {
		return errors.AlreadyExistsf("username %q", username)
	}
	return errors.Trace(err)
}

func (a *Accounts) get(username string) (accountDoc, error) {
	doc, err := engine.Get[accountDoc](a.store, engine.Accounts, username)
	if errors.Is(err, errors.NotFound) {
		return accountDoc{}, errors.NotFoundf("user %q", username)
	}
	if err != nil {
		return accountDoc{}, errors.Trace(err)
	}
	return doc, nil
}

// Get returns the public view of an account.
func (a *Accounts) Get(username string) (schema.Account, error) {
	doc, err := a.get(username)
	if err != nil {
		return schema.Account{}, err
	}
	return doc.public(), nil
}

// Authenticate checks a username/password pair. An unknown username is
// NotFound, a wrong password is Unauthorized.
func (a *Accounts) Authenticate(username, password string) (schema.Account, error) {
	doc, err := a.get(username)
	if err != nil {
		return schema.Account{}, err
	}
	if err := vault.CheckPassword(doc.PasswordHash, password); err != nil {
		return schema.Account{}, err
	}
	return doc.public(), nil
}

// UpdateProfile applies the non-empty fields of upd to username's account.
func (a *Accounts) UpdateProfile(username string, upd schema.ProfileUpdate) (schema.Account, error) {
	picture := strings.TrimSpace(upd.ProfilePicture)
	if picture != "" && !ValidImageRef(picture) {
		return schema.Account{}, errors.NotValidf("profile picture")
	}

	doc, err := engine.Update(a.store, engine.Accounts, username, func(d *accountDoc) error {
		if picture != "" {
			d.ProfilePicture = picture
		}
		if upd.Bio != "" {
			d.Bio = upd.Bio
		}
		return nil
	})
	if errors.Is(err, errors.NotFound) {
		return schema.Account{}, errors.NotFoundf("user %q", username)
	}
	if err != nil {
		return schema.Account{}, errors.Trace(err)
	}
	logger.WithField("user", username).Info("profile updated")
	return doc.public(), nil
}
