package utils

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_Bcrypt(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, expected %d", cost, bcrypt.DefaultCost)
	}

	again, _ := HashPassword("secret1")
	if again == hash {
		t.Error("hashing the same password twice must use a fresh salt")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("x", 72)); err != nil {
		t.Fatalf("72 bytes must hash, got %v", err)
	}
	_, err := HashPassword(strings.Repeat("x", 73))
	if !errors.Is(err, bcrypt.ErrPasswordTooLong) {
		t.Errorf("73 bytes: error = %v, expected ErrPasswordTooLong", err)
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("Teamello-2026")

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{"match", "Teamello-2026", hash, true},
		{"case differs", "teamello-2026", hash, false},
		{"trailing space", "Teamello-2026 ", hash, false},
		{"empty password", "", hash, false},
		{"not a bcrypt hash", "Teamello-2026", "Teamello-2026", false},
		{"empty hash", "Teamello-2026", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.expected)
			}
		})
	}
}
