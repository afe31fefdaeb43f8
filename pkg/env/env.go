package env

import "os"

// Get returns the environment variable named key, or fallback when it is
// unset or empty.
func Get(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
