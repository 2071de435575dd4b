package poller

import (
	"fmt"
	"os"
	"strings"
)

// EnvServerURL names the environment variable holding the base address
// of the catalogue-sync server.
const EnvServerURL = "CATALOGUE_SERVER_URL"

// ResolveServerURL resolves the server base address. An explicitly
// given address (e.g. from a command-line flag) always wins; the
// environment variable is only consulted when none is given.
func ResolveServerURL(explicit string) (string, error) {
	if value := strings.TrimSpace(explicit); value != "" {
		return value, nil
	}
	if value := strings.TrimSpace(os.Getenv(EnvServerURL)); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("poller: no server address given and %s is not set", EnvServerURL)
}
