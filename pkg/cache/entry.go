package cache

import "time"

// Entry is a stored gateway page together with the ETag used to revalidate it.
type Entry struct {
	Body        []byte    `json:"body"`
	ETag        string    `json:"etag"`
	ContentType string    `json:"content_type,omitempty"`
	StoredAt    time.Time `json:"stored_at"`

	// Expires is when the entry stops being offered for revalidation.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true once Expires has passed.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether the entry carries an ETag to send as
// If-None-Match. Entries without one are never used.
func (e *Entry) CanRevalidate() bool {
	return e != nil && e.ETag != ""
}
