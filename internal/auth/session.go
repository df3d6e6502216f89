// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens stay valid (0 => never expire).
	tokenTTL time.Duration
)

// Session is the identity carried by a token.
type Session struct {
	UserID   string
	Username string
}

// parseTokenExpire interprets the configured token lifetime.
func parseTokenExpire(expire string) (time.Duration, error) {
	if expire == "never" || expire == "0" || expire == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(expire)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Init generates a fresh ed25519 key pair at runtime and sets the token expiration.
// Tokens issued before a restart become invalid.
func Init(expire string) error {
	ttl, err := parseTokenExpire(expire)
	if err != nil {
		return err
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey, tokenTTL = pub, priv, ttl
	return nil
}

// InitFromSeed derives the key pair from a base64 ed25519 seed so tokens survive restarts
// and are accepted by every instance sharing the seed.
func InitFromSeed(seed, expire string) error {
	ttl, err := parseTokenExpire(expire)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return fmt.Errorf("failed to decode signing seed: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}
	privateKey = ed25519.NewKeyFromSeed(raw)
	publicKey = privateKey.Public().(ed25519.PublicKey)
	tokenTTL = ttl
	return nil
}

// CreateJWT creates a signed JWT token with "sub" = userID and "name" = username,
// expiring after the configured lifetime unless it is "never".
func CreateJWT(userID, username string) (string, error) {
	if privateKey == nil {
		return "", errors.New("auth not initialized")
	}
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": username,
		"iat":  time.Now().Unix(),
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns the session it carries.
func AuthenticateJWT(tokenString string) (Session, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})

	if err != nil {
		return Session{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Session{}, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("invalid jwt claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return Session{}, fmt.Errorf("missing sub in jwt")
	}
	username, _ := claims["name"].(string)

	return Session{UserID: userID, Username: username}, nil
}
