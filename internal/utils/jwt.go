package utils // package utils provides token, hashing and timing helpers shared by the identity and guard layers

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for refresh and reset tokens
    "encoding/hex"  // hex encoding of random and hashed values
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and reading signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry
// and issue time.
type AccessToken struct {
    Token    string    // the serialized JWT string
    IssuedAt time.Time // the UTC issue time
    Exp      time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived token used to obtain new access tokens.
// Only a SHA-256 hash of Raw is ever stored server side.
type RefreshToken struct {
    Raw string    // raw token string kept by the client
    Exp time.Time // UTC expiration time
}

// Claims is the subset of access-token claims the session layer needs.
// Providers put the display name and avatar either at the top level or
// inside user_metadata; both are honoured.
type Claims struct {
    jwt.RegisteredClaims
    Email        string         `json:"email,omitempty"`
    Name         string         `json:"name,omitempty"`
    Picture      string         `json:"picture,omitempty"`
    UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName returns the best available display name.
func (c *Claims) DisplayName() string {
    if c.Name != "" {
        return c.Name
    }
    for _, k := range []string{"full_name", "name"} {
        if v, ok := c.UserMetadata[k].(string); ok && v != "" {
            return v
        }
    }
    return ""
}

// Avatar returns the best available avatar reference.
func (c *Claims) Avatar() string {
    if c.Picture != "" {
        return c.Picture
    }
    for _, k := range []string{"avatar_url", "picture"} {
        if v, ok := c.UserMetadata[k].(string); ok && v != "" {
            return v
        }
    }
    return ""
}

// ErrNoSubject is returned when a token carries no sub claim.
var ErrNoSubject = errors.New("token has no subject")

// NewAccessToken builds and signs an HS256 JWT for a subject.  The token
// carries sub, email, name, iat and exp.
func NewAccessToken(secret, subject, email, name string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := Claims{
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   subject,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
        Email: email,
        Name:  name,
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, IssuedAt: now, Exp: exp}, nil
}

// ParseAccessToken reads the claims of raw.  With a non-empty secret the
// signature (HMAC only) and expiry are verified; with an empty secret the
// token is decoded without verification, which is how a client reads a
// token it received directly from its identity provider.
func ParseAccessToken(raw, secret string) (*Claims, error) {
    claims := &Claims{}
    if secret == "" {
        if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
            return nil, fmt.Errorf("decode token: %w", err)
        }
    } else {
        tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
            if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
            }
            return []byte(secret), nil
        })
        if err != nil {
            return nil, fmt.Errorf("verify token: %w", err)
        }
        if !tok.Valid {
            return nil, errors.New("invalid token")
        }
    }
    if claims.Subject == "" {
        return nil, ErrNoSubject
    }
    return claims, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := RandomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashToken returns the SHA-256 hash of a raw refresh or reset token as a
// hex string.
func HashToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
