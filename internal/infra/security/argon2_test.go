package security

import "testing"

func newTestHasher(t *testing.T) *Argon2Hasher {
	t.Helper()

	// Low-cost parameters keep the test suite fast while staying above the
	// validation floor.
	hasher, err := NewArgon2Hasher(Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}
	return hasher
}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	hasher := newTestHasher(t)

	hash, salt, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hash == "" || salt == "" {
		t.Fatalf("expected non-empty hash and salt")
	}

	ok, err := hasher.Verify("correct horse battery staple", hash, salt)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected matching password to verify")
	}

	ok, err = hasher.Verify("wrong password", hash, salt)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatched password to fail verification")
	}
}

func TestArgon2Hasher_SaltUniqueness(t *testing.T) {
	hasher := newTestHasher(t)

	hash1, salt1, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("first Hash: %v", err)
	}
	hash2, salt2, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("second Hash: %v", err)
	}

	if salt1 == salt2 {
		t.Fatalf("expected fresh salt per call")
	}
	if hash1 == hash2 {
		t.Fatalf("expected differing hashes for differing salts")
	}
}

func TestArgon2Hasher_MalformedStoredValues(t *testing.T) {
	hasher := newTestHasher(t)

	cases := []struct {
		name string
		hash string
		salt string
	}{
		{name: "empty hash", hash: "", salt: "c2FsdHNhbHRzYWx0c2FsdA"},
		{name: "empty salt", hash: "aGFzaA", salt: ""},
		{name: "bad base64 hash", hash: "!!!not-base64!!!", salt: "c2FsdHNhbHRzYWx0c2FsdA"},
		{name: "bad base64 salt", hash: "aGFzaA", salt: "!!!not-base64!!!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := hasher.Verify("password", tc.hash, tc.salt)
			if err != nil {
				t.Fatalf("expected malformed values to fail silently, got error: %v", err)
			}
			if ok {
				t.Fatalf("expected malformed values to fail verification")
			}
		})
	}
}

func TestNewArgon2Hasher_RejectsWeakConfig(t *testing.T) {
	if _, err := NewArgon2Hasher(Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatalf("expected low memory config to be rejected")
	}
	if _, err := NewArgon2Hasher(Argon2Config{Memory: 64 * 1024, Iterations: 3, Parallelism: 4, SaltLength: 8, KeyLength: 32}); err == nil {
		t.Fatalf("expected short salt config to be rejected")
	}
}
