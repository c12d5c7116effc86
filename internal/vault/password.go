// Package vault provides security primitives: password hashing and TLS certificate generation.
package vault

import (
	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor (2^10 rounds).
const PasswordCost = 10

// HashPassword returns a salted bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.NotValidf("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errors.NotValidf("password longer than 72 bytes")
	}
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(hash), nil
}

// CheckPassword reports an Unauthorized error if password does not match hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errors.Unauthorizedf("invalid password")
	}
	return errors.Trace(err)
}
