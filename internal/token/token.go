package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification: bad
// signature, malformed payload, or unexpected signing method.
var ErrInvalidToken = errors.New("invalid review token")

// Claim keys. Kept short because tokens travel in URLs.
const (
	reviewerIDKey = "rvid"
	revisionIDKey = "prid"
	contextIDKey  = "rrid"
)

// Claims is the decoded payload of a capability token: who may act, against
// which revision, and optionally under which review context. The context
// reference identifies either an open review request or an in-progress task
// state, depending on which lifecycle model the deployment runs; the codec
// treats it as an opaque reference either way.
type Claims struct {
	ReviewerID uint  `json:"rvid"`
	RevisionID uint  `json:"prid"`
	ContextID  *uint `json:"rrid,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies capability tokens with a process-wide symmetric
// secret. Tokens are authenticated but not encrypted: every claim is visible
// to the bearer. Tokens carry no expiry claim; for external reviewers the
// separate share expiry bounds access instead.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec using the given signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode produces a signed token for the given reviewer and revision.
// contextID may be nil when the token is not tied to a review request or
// task state.
func (c *Codec) Encode(reviewerID, revisionID uint, contextID *uint) (string, error) {
	claims := Claims{
		ReviewerID: reviewerID,
		RevisionID: revisionID,
		ContextID:  contextID,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. It performs no entity
// lookups; resolving the referenced reviewer, revision, and context is the
// caller's job.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ReviewerID == 0 || claims.RevisionID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
