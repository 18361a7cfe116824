// Package auth verifies the single shared admin credential against a
// bcrypt hash. There are no user accounts; everyone else is anonymous.
package auth

import "golang.org/x/crypto/bcrypt"

const bcryptCost = 12

type Authenticator struct {
	username string
	hash     string
}

// New takes the configured admin identity and its bcrypt password hash.
// An empty hash disables admin login entirely.
func New(username, passwordHash string) *Authenticator {
	return &Authenticator{username: username, hash: passwordHash}
}

// Authenticate reports whether the pair matches the admin credential.
func (a *Authenticator) Authenticate(username, password string) bool {
	if a.hash == "" || password == "" || username != a.username {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.hash), []byte(password)) == nil
}

// Hash generates a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
