package services

import (
	"regexp"
	"strings"
)

var (
	cardNameSeparators = regexp.MustCompile(`[ /]+`)
	cardNameStripChars = strings.NewReplacer("'", "", `"`, "", ",", "", ":", "", ";", "", "!", "", ".", "")
)

// basicLands are always priced at zero
var basicLands = map[string]bool{
	"plains":   true,
	"island":   true,
	"swamp":    true,
	"mountain": true,
	"forest":   true,
}

// NormalizeCardName converts a display name into the cache and lookup key:
// lower-case, runs of spaces and slashes become one hyphen, and punctuation
// is dropped ("Fire // Ice" -> "fire-ice", "Jace's Erasure" -> "jaces-erasure").
func NormalizeCardName(name string) string {
	key := strings.ToLower(name)
	key = cardNameSeparators.ReplaceAllString(key, "-")
	return cardNameStripChars.Replace(key)
}

// IsBasicLand reports whether the whole name is a basic land type
func IsBasicLand(name string) bool {
	return basicLands[strings.ToLower(name)]
}
