// Package signing issues and checks HMAC-signed, expiring links that grant
// read-only access to one session's results.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrBadSignature = errors.New("invalid signature")
	ErrExpired      = errors.New("link expired")
)

// Query parameter names carried by a share link.
const (
	ParamSession   = "session"
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

// Signer generates and validates share link signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature over sessionID and the expiry.
func (s *Signer) Sign(sessionID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "session:%s:%d", sessionID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Share returns the query of a link valid for ttl.
func (s *Signer) Share(sessionID string, ttl time.Duration) (url.Values, time.Time) {
	expires := s.now().Add(ttl).UTC().Truncate(time.Second)
	q := url.Values{}
	q.Set(ParamSession, sessionID)
	q.Set(ParamExpires, strconv.FormatInt(expires.Unix(), 10))
	q.Set(ParamSignature, s.Sign(sessionID, expires.Unix()))
	return q, expires
}

// Verify checks a link query and returns the session it grants.
func (s *Signer) Verify(q url.Values) (string, error) {
	sessionID := q.Get(ParamSession)
	exp, err := strconv.ParseInt(q.Get(ParamExpires), 10, 64)
	if err != nil || sessionID == "" {
		return "", ErrBadSignature
	}
	expected := s.Sign(sessionID, exp)
	if !hmac.Equal([]byte(expected), []byte(q.Get(ParamSignature))) {
		return "", ErrBadSignature
	}
	if s.now().Unix() > exp {
		return "", ErrExpired
	}
	return sessionID, nil
}
