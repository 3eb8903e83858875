package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

var hashSalt string

// InitHashSalt loads the salt used for log hashing from LOG_HASH_SALT.
func InitHashSalt() {
	hashSalt = os.Getenv("LOG_HASH_SALT")
	if hashSalt == "" {
		hashSalt = "default-salt-change-in-production"
	}
}

// InitHashSaltForTesting sets a fixed salt.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

func shortHash(data string) string {
	hash := sha256.Sum256([]byte(data + ":" + hashSalt))
	return hex.EncodeToString(hash[:])[:8]
}

// HashUserID creates a privacy-preserving hash of a user ID.
// This allows tracking user actions without exposing actual user IDs.
func HashUserID(userID int64) string {
	return shortHash(fmt.Sprintf("user:%d", userID))
}

// HashChatID creates a privacy-preserving hash of a chat ID.
func HashChatID(chatID int64) string {
	return shortHash(fmt.Sprintf("chat:%d", chatID))
}

// HashToken hashes a push token. Push tokens address a device and must not appear in logs.
func HashToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return shortHash("token:" + token)
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	words := len(strings.Fields(text))
	return fmt.Sprintf("%s...<%d words, %d chars>", text[:3], words, len(text))
}
