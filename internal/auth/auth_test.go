package auth

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateAPIKey_ReturnsValidBase64(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	decoded, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		t.Errorf("GenerateAPIKey() returned invalid base64url: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("GenerateAPIKey() decoded length = %d, want 32", len(decoded))
	}
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	keys := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey() iteration %d error = %v", i, err)
		}
		if keys[key] {
			t.Errorf("GenerateAPIKey() produced duplicate key on iteration %d", i)
		}
		keys[key] = true
	}
}

func TestGenerateAPIKey_URLSafe(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if strings.ContainsAny(key, "+/") {
		t.Errorf("GenerateAPIKey() contains non-URL-safe characters: %s", key)
	}
}

func TestHashKey_ReturnsBcryptHash(t *testing.T) {
	hash, err := HashKey("my-api-key")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("HashKey() returned non-bcrypt hash: %s", hash)
	}
}

func TestHashKey_DifferentSalts(t *testing.T) {
	hash1, err := HashKey("same-key")
	if err != nil {
		t.Fatalf("HashKey() first call error = %v", err)
	}
	hash2, err := HashKey("same-key")
	if err != nil {
		t.Fatalf("HashKey() second call error = %v", err)
	}
	if hash1 == hash2 {
		t.Error("HashKey() produced identical hashes, expected unique salts")
	}
}

func TestCheckKey(t *testing.T) {
	hash, err := HashKey("correct-key")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}

	if !CheckKey("correct-key", hash) {
		t.Error("CheckKey() = false for matching key")
	}
	if CheckKey("wrong-key", hash) {
		t.Error("CheckKey() = true for non-matching key")
	}
	if CheckKey("correct-key", "not-a-hash") {
		t.Error("CheckKey() = true for malformed hash")
	}
}
