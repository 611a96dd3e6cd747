package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// SubjectID is the opaque key issued by the identity provider for a user.
type SubjectID string

// IsValid checks that the subject id is non-empty.
func (s SubjectID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s SubjectID) String() string {
	return string(s)
}

// NewSubjectID creates a new SubjectID with validation.
func NewSubjectID(id string) (SubjectID, error) {
	s := SubjectID(strings.TrimSpace(id))
	if !s.IsValid() {
		return "", ErrInvalidToken
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Username
// ═══════════════════════════════════════════════════════════════════════════

// Username is the public display name of a user.
type Username string

var usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.-]{3,30}$`)

// IsValid checks the username format.
func (u Username) IsValid() bool {
	return usernameRegex.MatchString(string(u))
}

// String returns the string representation.
func (u Username) String() string {
	return string(u)
}

// NewUsername creates a new Username with validation.
func NewUsername(name string) (Username, error) {
	u := Username(strings.TrimSpace(name))
	if !u.IsValid() {
		return "", ErrInvalidUsername
	}
	return u, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position. Zero means unranked.
type Rank int

// Int returns the underlying value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked reports whether no rank was computed.
func (r Rank) IsUnranked() bool {
	return r <= 0
}

// RankFromGreaterCount converts "users with a strictly greater score" into a rank.
// Equal scores share a rank and the sequence is not dense: [10,10,8] → [1,1,3].
func RankFromGreaterCount(greater int64) Rank {
	if greater < 0 {
		greater = 0
	}
	return Rank(greater + 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// Language
// ═══════════════════════════════════════════════════════════════════════════

// Language selects the bilingual variant of content and feedback.
type Language string

const (
	LanguageEN Language = "en"
	LanguageES Language = "es"
)

// IsValid checks that the language is supported.
func (l Language) IsValid() bool {
	return l == LanguageEN || l == LanguageES
}

// ParseLanguage parses a language code; empty defaults to English.
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return LanguageEN, nil
	}
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", ErrInvalidLanguage
	}
	return l, nil
}
