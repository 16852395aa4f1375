package service

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Base62 character set for short code generation
const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// bytes at or above this value are rejected so every character is
// equally likely (248 = 4 * 62).
const maxUnbiasedByte = 248

// CodeGenerator produces candidate short codes. Uniqueness is decided by
// the store, not the generator.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws base62 codes from crypto/rand
type RandomCodeGenerator struct {
	length int
}

func NewRandomCodeGenerator(length int) *RandomCodeGenerator {
	return &RandomCodeGenerator{length: length}
}

// Generate returns a random code of the configured length
func (g *RandomCodeGenerator) Generate() (string, error) {
	if g.length <= 0 {
		return "", fmt.Errorf("short code length must be positive, got %d", g.length)
	}

	code := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(code) < g.length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= maxUnbiasedByte {
				continue
			}
			code = append(code, base62Chars[int(b)%len(base62Chars)])
			if len(code) == g.length {
				break
			}
		}
	}
	return string(code), nil
}

// reservedAliases would shadow routes served at the root.
var reservedAliases = map[string]struct{}{
	"api":         {},
	"health":      {},
	"metrics":     {},
	"favicon.ico": {},
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateAlias checks a caller-chosen short code
func ValidateAlias(alias string, minLen, maxLen int) error {
	if len(alias) < minLen || len(alias) > maxLen {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidAlias, minLen, maxLen)
	}
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: only letters, digits, '-' and '_' are allowed", ErrInvalidAlias)
	}
	if _, ok := reservedAliases[strings.ToLower(alias)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAlias, alias)
	}
	return nil
}

// ValidateURL accepts only absolute URLs with a scheme and a host
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
