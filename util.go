package main

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// unixMillis returns the server clock in milliseconds
func unixMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
