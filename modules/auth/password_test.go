package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)

	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse" {
		t.Error("Hash() returned the password unchanged")
	}

	if !hasher.Verify("correct horse", hash) {
		t.Error("Verify() = false for the right password")
	}
	if hasher.Verify("wrong horse", hash) {
		t.Error("Verify() = true for a wrong password")
	}
}

func TestPasswordHasher_DefaultCost(t *testing.T) {
	if got := NewPasswordHasher().cost; got != 12 {
		t.Errorf("cost = %v, want 12", got)
	}
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	low := NewPasswordHasherWithCost(bcrypt.MinCost)
	hash, err := low.Hash("secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if low.NeedsRehash(hash) {
		t.Error("NeedsRehash() = true for a hash with the same cost")
	}
	if !NewPasswordHasherWithCost(bcrypt.MinCost + 1).NeedsRehash(hash) {
		t.Error("NeedsRehash() = false for a hash with a lower cost")
	}
	if low.NeedsRehash("garbage") {
		t.Error("NeedsRehash() = true for an unparseable hash")
	}
}
