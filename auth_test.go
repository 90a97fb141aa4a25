package main

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	db := testDB(t)
	auth := NewAuth(db)

	id, token, err := auth.Register("pilot1", "hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == uuid.Nil || token == "" {
		t.Fatal("register returned empty identity")
	}

	gotID, name, err := auth.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotID != id || name != "pilot1" {
		t.Errorf("verified identity = %v/%s", gotID, name)
	}

	loginID, _, err := auth.Login("pilot1", "hunter2", "1.2.3.4")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginID != id {
		t.Errorf("login id %v != register id %v", loginID, id)
	}

	if _, _, err := auth.Login("pilot1", "wrong", "1.2.3.4"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestRegisterValidation(t *testing.T) {
	db := testDB(t)
	auth := NewAuth(db)

	if _, _, err := auth.Register("x", "password"); err == nil {
		t.Error("too-short username accepted")
	}
	if _, _, err := auth.Register("pilot", "abc"); err == nil {
		t.Error("too-short password accepted")
	}
	if _, _, err := auth.Register("pilot", "password"); err != nil {
		t.Fatalf("valid register rejected: %v", err)
	}
	if _, _, err := auth.Register("pilot", "password"); err == nil {
		t.Error("duplicate username accepted")
	}
}

func TestGuestIdentity(t *testing.T) {
	db := testDB(t)
	auth := NewAuth(db)

	id, name, err := auth.Guest("Maverick")
	if err != nil {
		t.Fatalf("guest: %v", err)
	}
	if id == uuid.Nil || name != "Maverick" {
		t.Errorf("guest identity = %v/%s", id, name)
	}
	// Empty names get a default
	if _, name, err = auth.Guest("  "); err != nil || name != "Pilot" {
		t.Errorf("default guest name = %q, err %v", name, err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	db := testDB(t)
	auth := NewAuth(db)
	if _, _, err := auth.VerifyToken("not-a-jwt"); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestLoginRateLimit(t *testing.T) {
	db := testDB(t)
	auth := NewAuth(db)
	if _, _, err := auth.Register("pilot", "secret"); err != nil {
		t.Fatal(err)
	}
	denied := false
	for i := 0; i < maxLoginAttempts+5; i++ {
		_, _, err := auth.Login("pilot", "wrong-pass", "9.9.9.9")
		if err != nil && err.Error() == "too many login attempts, try again later" {
			denied = true
		}
	}
	if !denied {
		t.Error("login rate limit never triggered")
	}
}
