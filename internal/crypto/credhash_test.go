package crypto

import (
	"bytes"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 32
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashCredential_DeterministicOnSameInput(t *testing.T) {
	t.Parallel()

	cred := []byte("p@ssw0rd")
	salt := []byte("NaCl-16-bytes???")

	h1 := HashCredential(cred, salt)
	h2 := HashCredential(cred, salt)
	if len(h1) == 0 || !bytes.Equal(h1, h2) {
		t.Fatalf("hash not deterministic for same input")
	}

	if bytes.Equal(h1, HashCredential(cred, []byte("another-salt----"))) {
		t.Fatalf("hash should differ when salt differs")
	}
	if bytes.Equal(h1, HashCredential([]byte("p@ssw0rd!"), salt)) {
		t.Fatalf("hash should differ when credential differs")
	}
}

func TestVerifyCredential(t *testing.T) {
	t.Parallel()

	cred := []byte("correct horse battery staple")
	salt := []byte("salty-salt-123456")
	hash := HashCredential(cred, salt)

	if !VerifyCredential(cred, salt, hash) {
		t.Fatalf("expected true for correct credential")
	}
	if VerifyCredential([]byte("wrong"), salt, hash) {
		t.Fatalf("expected false for wrong credential")
	}
	if VerifyCredential(cred, []byte("wrong-salt"), hash) {
		t.Fatalf("expected false for wrong salt")
	}
}
