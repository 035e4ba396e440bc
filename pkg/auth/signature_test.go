package auth

import (
	"net/url"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name       string
		ts         string
		privateKey string
		publicKey  string
		want       string
	}{
		{
			// Example from the Marvel developer documentation.
			name:       "documented example",
			ts:         "1",
			privateKey: "abcd",
			publicKey:  "1234",
			want:       "ffd275c5130566a2916217b101f26150",
		},
		{
			name:       "empty inputs",
			ts:         "",
			privateKey: "",
			publicKey:  "",
			want:       "d41d8cd98f00b204e9800998ecf8427e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sign(tt.ts, tt.privateKey, tt.publicKey); got != tt.want {
				t.Errorf("Sign() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	first := Sign("2024-01-0112:00:00", "priv", "pub")
	for i := 0; i < 10; i++ {
		if got := Sign("2024-01-0112:00:00", "priv", "pub"); got != first {
			t.Fatalf("Sign() = %v on run %d, want %v", got, i, first)
		}
	}
}

func TestSign_ChangesWithInputs(t *testing.T) {
	base := Sign("ts", "priv", "pub")

	variants := map[string]string{
		"timestamp":   Sign("ts2", "priv", "pub"),
		"private key": Sign("ts", "priv2", "pub"),
		"public key":  Sign("ts", "priv", "pub2"),
	}

	for name, got := range variants {
		if got == base {
			t.Errorf("changing %s did not change the signature", name)
		}
	}
}

func TestSigner_Sign(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC)
	signer := NewSigner(Credentials{PublicKey: "pub", PrivateKey: "priv"}).
		WithClock(func() time.Time { return fixed })

	sig := signer.Sign()

	if sig.Timestamp != "2024-03-0908:07:06" {
		t.Errorf("Timestamp = %q, want %q", sig.Timestamp, "2024-03-0908:07:06")
	}
	if want := Sign(sig.Timestamp, "priv", "pub"); sig.Hash != want {
		t.Errorf("Hash = %q, want %q", sig.Hash, want)
	}
}

func TestSigner_HashMatchesTimestampPerRequest(t *testing.T) {
	// Clock advances on every read; each signature must still be internally consistent.
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	signer := NewSigner(Credentials{PublicKey: "pub", PrivateKey: "priv"}).
		WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		})

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		sig := signer.Sign()
		if sig.Hash != Sign(sig.Timestamp, "priv", "pub") {
			t.Fatalf("signature %d: hash does not match timestamp %q", i, sig.Timestamp)
		}
		if seen[sig.Timestamp] {
			t.Fatalf("signature %d: timestamp %q reused", i, sig.Timestamp)
		}
		seen[sig.Timestamp] = true
	}
}

func TestSigner_SignParams(t *testing.T) {
	signer := NewSigner(Credentials{PublicKey: "pub", PrivateKey: "priv"}).
		WithClock(func() time.Time { return time.Unix(0, 0).UTC() })

	params := url.Values{}
	sig := signer.SignParams(params)

	if params.Get(ParamAPIKey) != "pub" {
		t.Errorf("apikey = %q, want %q", params.Get(ParamAPIKey), "pub")
	}
	if params.Get(ParamTimestamp) != sig.Timestamp {
		t.Errorf("ts = %q, want %q", params.Get(ParamTimestamp), sig.Timestamp)
	}
	if params.Get(ParamHash) != sig.Hash {
		t.Errorf("hash = %q, want %q", params.Get(ParamHash), sig.Hash)
	}
}

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{"valid", Credentials{PublicKey: "pub", PrivateKey: "priv"}, nil},
		{"missing public", Credentials{PrivateKey: "priv"}, ErrMissingPublicKey},
		{"missing private", Credentials{PublicKey: "pub"}, ErrMissingPrivateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.creds.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
