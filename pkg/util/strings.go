package util

import "strconv"

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}

// IsUpperAlpha reports whether s is non-empty and consists solely of
// uppercase ASCII letters.
func IsUpperAlpha(s string) bool {
    if s == "" {
        return false
    }
    for _, r := range s {
        if r < 'A' || r > 'Z' {
            return false
        }
    }
    return true
}