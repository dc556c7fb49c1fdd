// Package control reads the on-disk operator inputs: API credentials,
// the coin list and the kill-switch file.
package control

import (
	"fmt"
	"os"
	"strings"
)

// ReadCredentials loads an API key pair from a plain text file:
// line 1 the key, line 2 the secret.
func ReadCredentials(path string) (key, secret string, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	lines := strings.Split(string(content), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("credentials file %s: expected key and secret lines", path)
	}
	key = strings.TrimSpace(lines[0])
	secret = strings.TrimSpace(lines[1])
	if key == "" || secret == "" {
		return "", "", fmt.Errorf("credentials file %s: empty key or secret", path)
	}
	return key, secret, nil
}
