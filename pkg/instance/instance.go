package instance

import (
	"os"

	"github.com/xymail/xymail-backend/pkg/env"
)

// GetID identifies this process when it competes for shared locks.
func GetID() string {
	if id := env.Get("XYMAIL_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
