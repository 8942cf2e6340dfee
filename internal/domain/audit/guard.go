package audit

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/groceryshare/backend/internal/domain/shared"
	"golang.org/x/text/unicode/norm"
)

// Metadata keys an entry may carry. Anything else is rejected.
const (
	MetaCanceledBy = "canceled_by"
	MetaOutcome    = "outcome"
	MetaScore      = "score"
	MetaSenderRole = "sender_role"
	MetaDecision   = "decision"
	MetaTrigger    = "trigger"
	MetaPriority   = "priority"
	MetaCount      = "count"
	MetaKeyID      = "key_id"
)

var allowedKeys = map[string]bool{
	MetaCanceledBy: false,
	MetaOutcome:    false,
	MetaScore:      true,
	MetaSenderRole: false,
	MetaDecision:   false,
	MetaTrigger:    false,
	MetaPriority:   true,
	MetaCount:      true,
	MetaKeyID:      false,
}

const (
	maxValueRunes = 64
	maxDigitRun   = 6
	minForbidden  = 3
)

type guard struct {
	forbidden []string
}

func integrityError(msg string) error {
	return shared.NewDomainError(shared.CodeDataIntegrityViolated, "Audit entry rejected: "+msg)
}

// check validates every metadata pair. Values are NFKC-normalised first so
// full-width digits and compatibility forms cannot slip past.
func (g guard) check(metadata map[string]string) error {
	for key, raw := range metadata {
		numeric, ok := allowedKeys[key]
		if !ok {
			return integrityError("metadata key " + key + " is not allowed")
		}
		value := norm.NFKC.String(raw)
		if value == "" {
			return integrityError("metadata value for " + key + " is empty")
		}
		if utf8.RuneCountInString(value) > maxValueRunes {
			return integrityError("metadata value for " + key + " is too long")
		}
		if numeric {
			if !isInteger(value) {
				return integrityError("metadata value for " + key + " must be an integer")
			}
		} else {
			if !isToken(value) {
				return integrityError("metadata value for " + key + " must be a code")
			}
			if longestDigitRun(value) > maxDigitRun {
				return integrityError("metadata value for " + key + " looks like a phone number")
			}
		}
		if g.matchesForbidden(value) {
			return integrityError("metadata value for " + key + " carries protected content")
		}
	}
	return nil
}

func (g guard) matchesForbidden(value string) bool {
	folded := fold(value)
	if folded == "" {
		return false
	}
	for _, f := range g.forbidden {
		if strings.Contains(folded, f) {
			return true
		}
	}
	return false
}

// fold lower-cases and strips everything except letters and digits
func fold(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

func isInteger(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func longestDigitRun(s string) int {
	longest, run := 0, 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}
