// AngelaMos | 2026
// security_test.go

package core

import (
	"testing"
)

func TestServiceKeyRoundTrip(t *testing.T) {
	key, err := GenerateServiceKey()
	if err != nil {
		t.Fatalf("GenerateServiceKey: %v", err)
	}

	hash, err := HashServiceKey(key)
	if err != nil {
		t.Fatalf("HashServiceKey: %v", err)
	}

	ok, err := VerifyServiceKey(key, hash)
	if err != nil {
		t.Fatalf("VerifyServiceKey: %v", err)
	}
	if !ok {
		t.Error("correct key rejected")
	}

	ok, err = VerifyServiceKey(key+"x", hash)
	if err != nil {
		t.Fatalf("VerifyServiceKey (wrong key): %v", err)
	}
	if ok {
		t.Error("wrong key accepted")
	}
}

func TestVerifyServiceKey_MalformedHash(t *testing.T) {
	if _, err := VerifyServiceKey("key", "not-a-hash"); err == nil {
		t.Error("malformed hash must error")
	}
}

func TestCompareTokenHash(t *testing.T) {
	token, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}

	hash := HashToken(token)
	if !CompareTokenHash(token, hash) {
		t.Error("matching token rejected")
	}
	if CompareTokenHash("other", hash) {
		t.Error("non-matching token accepted")
	}
}
