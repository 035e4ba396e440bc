package testutil

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedQuery(pub, priv, ts string) url.Values {
	sum := md5.Sum([]byte(ts + priv + pub))
	return url.Values{
		"apikey": {pub},
		"ts":     {ts},
		"hash":   {hex.EncodeToString(sum[:])},
	}
}

func get(t *testing.T, m *MockMarvel, path string, q url.Values) (int, string) {
	t.Helper()
	resp, err := http.Get(m.URL() + path + "?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMockMarvel_ServesSignedPage(t *testing.T) {
	m := NewMockMarvel("pub", "priv")
	defer m.Close()
	m.SetTotal(5)

	q := signedQuery("pub", "priv", "1")
	q.Set("limit", "1")
	q.Set("offset", "2")

	status, body := get(t, m, ComicsPath, q)
	require.Equal(t, http.StatusOK, status)

	var page dataWrapper
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.Equal(t, 2, page.Data.Offset)
	assert.Equal(t, 1, page.Data.Limit)
	assert.Equal(t, 5, page.Data.Total)
	require.Len(t, page.Data.Results, 1)
	assert.Equal(t, 1002, page.Data.Results[0].ID)

	assert.Equal(t, []string{"2"}, m.Offsets())
}

func TestMockMarvel_RejectsBadSignature(t *testing.T) {
	m := NewMockMarvel("pub", "priv")
	defer m.Close()

	tests := []struct {
		name   string
		query  url.Values
		status int
	}{
		{"wrong private key", signedQuery("pub", "other", "1"), http.StatusUnauthorized},
		{"wrong public key", signedQuery("nope", "priv", "1"), http.StatusUnauthorized},
		{"missing hash", url.Values{"apikey": {"pub"}, "ts": {"1"}}, http.StatusConflict},
		{"missing key", url.Values{}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := get(t, m, ComicsPath, tt.query)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestMockMarvel_ConditionalRequest(t *testing.T) {
	m := NewMockMarvel("pub", "priv")
	defer m.Close()

	q := signedQuery("pub", "priv", "1")
	q.Set("limit", "1")

	req, err := http.NewRequest(http.MethodGet, m.URL()+ComicsPath+"?"+q.Encode(), nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", ComicsETag(0, 1, 10))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Equal(t, 1, m.GetConditionalCount())
}

func TestMockMarvel_CustomResponse(t *testing.T) {
	m := NewMockMarvel("pub", "priv")
	defer m.Close()
	m.SetResponse(ComicsPath, NewQuotaExceededResponse())

	status, body := get(t, m, ComicsPath, signedQuery("pub", "priv", "1"))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "RequestThrottled")

	m.Reset()
	assert.Equal(t, 0, m.GetRequestCount())
}

func TestComicsPage_LastPageShort(t *testing.T) {
	var page dataWrapper
	require.NoError(t, json.Unmarshal([]byte(ComicsPage(9, 5, 10)), &page))
	assert.Equal(t, 1, page.Data.Count)
	assert.Len(t, page.Data.Results, 1)
}
