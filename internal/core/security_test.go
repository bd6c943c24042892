// AngelaMos | 2026
// security_test.go

package core

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := VerifyPassword("correct horse", hash)
	if err != nil || !ok {
		t.Fatalf("verify correct password: ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword("battery staple", hash)
	if err != nil || ok {
		t.Fatalf("verify wrong password: ok=%v err=%v", ok, err)
	}

	if NeedsRehash(hash) {
		t.Fatalf("fresh hash should not need rehash")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	_, err := VerifyPassword("x", "$bcrypt$nope")
	if !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("err = %v, want ErrMalformedHash", err)
	}
	if !NeedsRehash("garbage") {
		t.Fatalf("garbage hash should need rehash")
	}
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !VerifyPasswordTimingSafe("s3cret", hash) {
		t.Fatalf("expected match")
	}
	if VerifyPasswordTimingSafe("s3cret", "") {
		t.Fatalf("missing hash must never verify")
	}
	if VerifyPasswordTimingSafe("s3cret", "not-a-hash") {
		t.Fatalf("malformed hash must never verify")
	}
}
