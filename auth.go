package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 7 * 24 * time.Hour
	bcryptCost       = 12
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

// Auth is the authentication collaborator. It asserts verified user
// identities; the simulation consumes the user id and nothing else.
type Auth struct {
	db        *DB
	jwtSecret []byte

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates the auth handler, loading or generating the signing
// secret.
func NewAuth(db *DB) *Auth {
	return &Auth{
		db:        db,
		jwtSecret: loadOrCreateSecret(db),
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the JWT secret from the database, or
// generates and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			Log.Warnw("could not persist JWT secret", "error", err)
		}
	}
	return secret
}

// Register creates a new account and returns (user id, token)
func (a *Auth) Register(username, password string) (uuid.UUID, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return uuid.Nil, "", fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return uuid.Nil, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("database error")
	}
	if exists {
		return uuid.Nil, "", fmt.Errorf("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("internal error")
	}

	id, err := a.db.CreatePlayer(username, string(hash), false)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to create account")
	}

	token, err := a.generateToken(id, username)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("internal error")
	}
	return id, token, nil
}

// Login authenticates by credentials, rate-limited per IP
func (a *Auth) Login(username, password, ip string) (uuid.UUID, string, error) {
	if !a.checkRate(ip) {
		return uuid.Nil, "", fmt.Errorf("too many login attempts, try again later")
	}

	player, err := a.db.GetPlayerByUsername(username)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("database error")
	}
	if player == nil {
		return uuid.Nil, "", fmt.Errorf("invalid username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(player.PassHash), []byte(password)) != nil {
		return uuid.Nil, "", fmt.Errorf("invalid username or password")
	}

	token, err := a.generateToken(player.ID, player.Username)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("internal error")
	}
	return player.ID, token, nil
}

// Guest mints a throwaway identity
func (a *Auth) Guest(name string) (uuid.UUID, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Pilot"
	}
	if len(name) > maxUsernameLen {
		name = name[:maxUsernameLen]
	}
	id, err := a.db.CreatePlayer(fmt.Sprintf("%s-%s", name, GenerateID(3)), "", true)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to create guest")
	}
	return id, name, nil
}

// VerifyToken checks an HS256 token and returns the asserted identity
func (a *Auth) VerifyToken(tokenStr string) (uuid.UUID, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", fmt.Errorf("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid subject")
	}
	username, _ := claims["name"].(string)
	return id, username, nil
}

func (a *Auth) generateToken(id uuid.UUID, username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.String(),
		"name": username,
		"exp":  time.Now().Add(jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()
	now := time.Now()
	entry := a.rateMap[ip]
	if entry == nil || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
