// Package auth covers password hashing, session tokens and the signed
// one-click email links.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MarkPackedToken signs a (user, date, item) triple for the one-click
// mark-packed link in reminder emails. The link carries no session, so the
// signature is the only authentication.
func MarkPackedToken(secret string, userID int64, date string, itemID int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s:%d", userID, date, itemID)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyMarkPackedToken checks a mark-packed token in constant time.
func VerifyMarkPackedToken(secret string, userID int64, date string, itemID int64, token string) bool {
	expected := MarkPackedToken(secret, userID, date, itemID)
	return hmac.Equal([]byte(expected), []byte(token))
}
