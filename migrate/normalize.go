package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NormalizeEDoc round-trips an edoc through YAML so that key order and
// formatting quirks from the service don't leak into the content hash.
// yaml.Marshal emits map keys sorted, which is exactly the stability we
// need.
func NormalizeEDoc(edoc string) (string, error) {
	var document any
	if err := yaml.Unmarshal([]byte(edoc), &document); err != nil {
		return "", fmt.Errorf("migrate: edoc is not valid YAML: %w", err)
	}

	normalized, err := yaml.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("migrate: couldn't re-marshal edoc: %w", err)
	}

	return string(normalized), nil
}

// HashEDoc hashes a normalized edoc.  Same normalized input, same hash,
// across runs and platforms.
func HashEDoc(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
