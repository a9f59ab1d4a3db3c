package instance

import "os"

// GetID identifies the running process in logs and lock ownership records.
// WORKER_ID wins over the platform dyno name; the hostname is the fallback.
func GetID() string {
	for _, key := range []string{"WORKER_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
