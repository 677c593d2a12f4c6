package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives the content-addressed cache key for an external call: a sha256
// over the API name and the canonical JSON encoding of its parameters.
// encoding/json sorts map keys, so identical requests hash identically
// across runs regardless of parameter ordering in the caller.
func Key(apiName string, params any) (string, error) {
	if apiName == "" {
		return "", fmt.Errorf("cache: api name is required")
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache: encode request params: %w", err)
	}
	digest := sha256.New()
	digest.Write([]byte(apiName))
	digest.Write([]byte{'\n'})
	digest.Write(encoded)
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
