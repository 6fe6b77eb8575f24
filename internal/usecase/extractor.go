package usecase

import (
	"strings"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
)

const (
	orderMarker = "ORDER"
	// hexIDLength is the length of a UUID with its separators removed.
	hexIDLength = 32
)

// ExtractOrderID recovers a canonical order identifier from free-text transfer content.
//
// Banks often strip '_' and '-' from the description, so both "ORDER_<uuid>" and
// "ORDER<32 hex digits>" are recognised and normalised to the hyphenated lowercase form.
// Runs too short to hold a full identifier are rejected rather than guessed.
func ExtractOrderID(content string) (string, bool) {
	for offset := 0; offset < len(content); {
		idx := indexMarker(content[offset:])
		if idx < 0 {
			return "", false
		}
		start := offset + idx + len(orderMarker)
		if id, ok := canonicalID(identifierRun(content[start:])); ok {
			return id, true
		}
		offset = start
	}
	return "", false
}

// ParseOrderReference is ExtractOrderID reporting a miss as ErrNoCandidate.
func ParseOrderReference(content string) (string, error) {
	id, ok := ExtractOrderID(content)
	if !ok {
		return "", domainErrors.ErrNoCandidate
	}
	return id, nil
}

// indexMarker finds the marker ignoring ASCII case. Byte offsets stay valid
// for content with multi-byte runes since only ASCII letters are folded.
func indexMarker(s string) int {
	for i := 0; i+len(orderMarker) <= len(s); i++ {
		match := true
		for j := 0; j < len(orderMarker); j++ {
			c := s[i+j]
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			if c != orderMarker[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func identifierRun(s string) string {
	end := 0
	for end < len(s) && isIdentifierChar(s[end]) {
		end++
	}
	return s[:end]
}

func isIdentifierChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '_' || c == '-':
		return true
	default:
		return false
	}
}

func canonicalID(run string) (string, bool) {
	compact := strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return -1
		}
		return r
	}, run)
	if len(compact) < hexIDLength {
		return "", false
	}
	id, err := uuid.Parse(compact[:hexIDLength])
	if err != nil {
		return "", false
	}
	return id.String(), true
}
