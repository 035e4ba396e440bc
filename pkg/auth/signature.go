// Package auth implements the Marvel API request signing scheme.
//
// Server-side calls must carry the public key, a timestamp and an MD5 digest of
// timestamp + private key + public key. MD5 is mandated by the upstream API.
package auth

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"time"
)

// TimestampLayout is the layout used to render the ts parameter.
const TimestampLayout = "2006-01-0215:04:05"

// Query parameter names used by the signing scheme.
const (
	ParamAPIKey    = "apikey"
	ParamHash      = "hash"
	ParamTimestamp = "ts"
)

// Common errors returned by the auth package.
var (
	ErrMissingPublicKey  = errors.New("public key is required")
	ErrMissingPrivateKey = errors.New("private key is required")
)

// Credentials holds the Marvel developer key pair.
type Credentials struct {
	PublicKey  string
	PrivateKey string
}

// Validate checks that both keys are set.
func (c Credentials) Validate() error {
	if c.PublicKey == "" {
		return ErrMissingPublicKey
	}
	if c.PrivateKey == "" {
		return ErrMissingPrivateKey
	}
	return nil
}

// Sign returns hex(md5(ts + privateKey + publicKey)).
func Sign(ts, privateKey, publicKey string) string {
	sum := md5.Sum([]byte(ts + privateKey + publicKey))
	return hex.EncodeToString(sum[:])
}

// Signature is a timestamp and the hash computed from it.
type Signature struct {
	Timestamp string
	Hash      string
}

// Apply sets apikey, ts and hash on params.
func (s Signature) Apply(params url.Values, publicKey string) {
	params.Set(ParamAPIKey, publicKey)
	params.Set(ParamTimestamp, s.Timestamp)
	params.Set(ParamHash, s.Hash)
}

// Signer produces a fresh signature for every request.
type Signer struct {
	creds Credentials
	now   func() time.Time
}

// NewSigner creates a signer using the wall clock.
func NewSigner(creds Credentials) *Signer {
	return &Signer{
		creds: creds,
		now:   time.Now,
	}
}

// WithClock replaces the clock (for testing).
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// PublicKey returns the public half of the key pair.
func (s *Signer) PublicKey() string {
	return s.creds.PublicKey
}

// Sign reads the clock once and derives the hash from that reading, so the
// ts and hash sent together always match.
func (s *Signer) Sign() Signature {
	ts := s.now().Format(TimestampLayout)
	return Signature{
		Timestamp: ts,
		Hash:      Sign(ts, s.creds.PrivateKey, s.creds.PublicKey),
	}
}

// SignParams signs a new request and applies the result to params.
func (s *Signer) SignParams(params url.Values) Signature {
	sig := s.Sign()
	sig.Apply(params, s.creds.PublicKey)
	return sig
}
