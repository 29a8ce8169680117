package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses the trimmed value of key, falling back to def when the variable is
// unset or does not parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	return lookup(key, defaultVal, strconv.Atoi)
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	return lookup(key, defaultVal, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return lookup(key, defaultVal, strconv.ParseBool)
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return lookup(key, defaultVal, time.ParseDuration)
}

// getEnvAsStringSlice splits a comma separated list. Blank entries are dropped and
// an all-blank value keeps the defaults.
func getEnvAsStringSlice(key string, defaults []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaults
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}
