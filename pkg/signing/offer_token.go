// Package signing issues HMAC tokens that let a promoted student accept an
// offer from a link without a session.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token errors.
var (
	ErrMalformedToken = errors.New("malformed offer token")
	ErrBadSignature   = errors.New("invalid offer token signature")
	ErrTokenExpired   = errors.New("offer token expired")
)

// OfferClaims is the content of an accept link.
type OfferClaims struct {
	RegistrationID string
	StudentID      string
	ExpiresAt      time.Time
}

// OfferSigner creates and validates accept-link tokens.
type OfferSigner struct {
	secret []byte
}

// NewOfferSigner constructs a signer with the provided secret.
func NewOfferSigner(secret string) *OfferSigner {
	return &OfferSigner{secret: []byte(secret)}
}

// Generate returns a token valid until claims.ExpiresAt, which should equal the offer deadline.
func (s *OfferSigner) Generate(claims OfferClaims) (string, error) {
	if claims.RegistrationID == "" || claims.StudentID == "" {
		return "", fmt.Errorf("registration and student required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	student := base64.RawURLEncoding.EncodeToString([]byte(claims.StudentID))
	ts := strconv.FormatInt(claims.ExpiresAt.Unix(), 10)
	signature := s.sign(claims.RegistrationID, ts, student)
	return strings.Join([]string{claims.RegistrationID, ts, student, signature}, "."), nil
}

// Parse validates token at now and returns its claims.
func (s *OfferSigner) Parse(token string, now time.Time) (*OfferClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrMalformedToken
	}
	regID, ts, student, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(regID, ts, student)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	rawStudent, err := base64.RawURLEncoding.DecodeString(student)
	if err != nil {
		return nil, ErrMalformedToken
	}
	claims := &OfferClaims{RegistrationID: regID, StudentID: string(rawStudent), ExpiresAt: time.Unix(expUnix, 0).UTC()}
	if now.After(claims.ExpiresAt) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

// AcceptURL appends a token to baseURL as the token query parameter.
func AcceptURL(baseURL, token string) string {
	if baseURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + "token=" + token
}

func (s *OfferSigner) sign(regID, ts, student string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(regID + "|" + ts + "|" + student))
	return hex.EncodeToString(mac.Sum(nil))
}
