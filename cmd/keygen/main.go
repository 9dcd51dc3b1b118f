// Command keygen prints a fresh JWT_SECRET and ENCRYPTION_KEY for
// pasting into the gateway's environment, sized to C20's validation
// rules (JWT_SECRET >= 32 chars, ENCRYPTION_KEY == 32 chars).
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func main() {
	jwtSecret, err := randomHex(32)
	if err != nil {
		fmt.Printf("failed to generate JWT_SECRET: %v\n", err)
		os.Exit(1)
	}

	// ENCRYPTION_KEY must be exactly 32 raw characters, not 32 bytes of hex.
	rawKey := make([]byte, 32)
	if _, err := rand.Read(rawKey); err != nil {
		fmt.Printf("failed to generate ENCRYPTION_KEY: %v\n", err)
		os.Exit(1)
	}
	encryptionKey := hex.EncodeToString(rawKey)[:32]

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("ENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Println("--------------------------------")
}
