package instance

import "os"

// GetID returns the replica identifier attached to worker logs and cron lock owners.
func GetID() string {
	if id := os.Getenv("STAGECALL_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
