package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	letterBytes  = "abcdefghijklmnopqrstuvwxyz"
	numberBytes  = "0123456789"
	alphanumeric = letterBytes + numberBytes
)

func GenerateRandomString(length int) string {
	return generateRandom(length, alphanumeric)
}

func GenerateRandomNumericString(length int) string {
	return generateRandom(length, numberBytes)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

// GenerateRequestNumber produces the human-facing SOS ticket number, e.g.
// "SOS-3F9A27C1". It is display-only; uniqueness is enforced by the store id.
func GenerateRequestNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SOS-" + strings.ToUpper(raw[:RequestNumberLength])
}

// GenerateSubscriberID identifies a live event subscription.
func GenerateSubscriberID() string {
	return uuid.NewString()
}
