package jwt

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// CreateCookie builds an HttpOnly session cookie that expires at exp.
func CreateCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// DeleteCookie clears a cookie set by CreateCookie with the same name and path.
func DeleteCookie(name, path string) *http.Cookie {
	c := CreateCookie(name, "", path, time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func NewJTI() string { return uuid.NewString() }
