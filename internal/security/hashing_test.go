package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not be the plaintext")
	}
	if err := h.Verify(hash, "correct horse"); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if err := h.Verify(hash, "battery staple"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("wrong password err = %v, want ErrPasswordMismatch", err)
	}
	if err := h.Verify("not-a-bcrypt-hash", "x"); err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("malformed hash err = %v", err)
	}
}

func TestPasswordHasher_EmptyPassword(t *testing.T) {
	if _, err := NewPasswordHasher(bcrypt.MinCost).Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("err = %v, want ErrEmptyPassword", err)
	}
}

func TestNewPasswordHasher_Cost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultBcryptCost},
		{-1, DefaultBcryptCost},
		{2, bcrypt.MinCost},
		{10, 10},
		{99, bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := NewPasswordHasher(tt.in).Cost(); got != tt.want {
			t.Errorf("NewPasswordHasher(%d).Cost() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	low := NewPasswordHasher(bcrypt.MinCost)
	hash, err := low.Hash("pw12345678")
	if err != nil {
		t.Fatal(err)
	}
	if low.NeedsRehash(hash) {
		t.Error("same cost should not need a rehash")
	}
	if !NewPasswordHasher(bcrypt.MinCost + 1).NeedsRehash(hash) {
		t.Error("cost change should need a rehash")
	}
	if !low.NeedsRehash("garbage") {
		t.Error("unparseable hash should need a rehash")
	}
}
