package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// HashSymptomSet hashes a symptom list independent of its order.
func HashSymptomSet(symptoms []string) string {
	sorted := make([]string, len(symptoms))
	copy(sorted, symptoms)
	sort.Strings(sorted)
	return HashString(strings.Join(sorted, "\x1f"))
}
