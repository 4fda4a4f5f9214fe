package instance

import (
	"fmt"
	"os"
)

const envInstanceID = "QUOTEDESK_INSTANCE_ID"

// GetID returns the identifier of this process. It tags log lines and lets
// the event bridge skip messages the process published itself.
func GetID() string {
	if id := os.Getenv(envInstanceID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "quotedesk"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
