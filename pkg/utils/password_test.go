package utils

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secreta123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "secreta123" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if !CheckPassword("secreta123", hash) {
		t.Fatalf("expected correct password to verify")
	}
	if CheckPassword("incorrecta", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestCheckPasswordTrimsBcryptInput(t *testing.T) {
	hash, err := HashPassword("secreta123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !CheckPassword("  secreta123  ", hash) {
		t.Fatalf("expected surrounding whitespace to be trimmed before verification")
	}
}

func TestCheckPasswordLegacyPlaintext(t *testing.T) {
	cases := []struct {
		name      string
		submitted string
		stored    string
		want      bool
	}{
		{"exact match", "clave", "clave", true},
		{"stored with whitespace", "clave", "  clave  ", true},
		{"submitted with whitespace", "  clave  ", "clave", true},
		{"mismatch", "clave", "otra", false},
		{"case sensitive", "Clave", "clave", false},
		{"empty stored", "clave", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckPassword(tc.submitted, tc.stored); got != tc.want {
				t.Fatalf("CheckPassword(%q, %q) = %v, want %v", tc.submitted, tc.stored, got, tc.want)
			}
		})
	}
}
