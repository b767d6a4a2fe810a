// Package fingerprint derives stable identifiers and content hashes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"github.com/google/uuid"
)

// StableID is the name-based UUID (v5, URL namespace) of a canonical URL.
// The same URL always maps to the same decision id.
func StableID(canonicalURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonicalURL)).String()
}

// ChunkID identifies chunk index of a decision.
func ChunkID(decisionID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(decisionID+"::chunk::"+strconv.Itoa(index))).String()
}

// ContentHash is the hex SHA-256 of normalised text.
func ContentHash(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// Decide classifies a document against what is stored under its id.
func Decide(storedHash string, found bool, newHash string) string {
	switch {
	case !found:
		return models.OutcomeImported
	case storedHash == newHash:
		return models.OutcomeSkipped
	default:
		return models.OutcomeUpdated
	}
}
