package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// volatileParams change on every signed request and never identify content.
var volatileParams = map[string]bool{
	"ts":     true,
	"hash":   true,
	"apikey": true,
}

// Key identifies a cached gateway response.
type Key struct {
	// Endpoint is the API path (e.g., "/v1/public/comics")
	Endpoint string

	// QueryParams as sent; signing params are ignored when building the key.
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: marvel:<account>:endpoint:query1=val1:query2=val2
//
// Example:
//
//	marvel:9f86d081:v1/public/comics:limit=1:offset=2
func (k Key) String() string {
	parts := []string{"marvel"}

	if apiKey := k.QueryParams.Get("apikey"); apiKey != "" {
		parts = append(parts, fingerprint(apiKey))
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			if volatileParams[key] {
				continue
			}
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
