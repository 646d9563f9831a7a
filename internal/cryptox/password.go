// Package cryptox hashes and verifies account passwords.
package cryptox

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by CheckPassword for a wrong password.
var ErrPasswordMismatch = errors.New("password mismatch")

// Cost is the bcrypt work factor; tests lower it.
var Cost = bcrypt.DefaultCost

func HashPassword(password []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(password, Cost)
}

func CheckPassword(hash, password []byte) error {
	err := bcrypt.CompareHashAndPassword(hash, password)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
