// Package exercise contains the daily exercise set: four difficulty tiers with
// bilingual content, keyed by calendar date and a theme derived from that date.
// Sets are immutable once stored.
package exercise

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// THEME
// ══════════════════════════════════════════════════════════════════════════════

// Theme is the seasonal label of a day.
type Theme string

const (
	ThemeGeneral      Theme = "General"
	ThemeValentines   Theme = "Valentines Day"
	ThemeHalloween    Theme = "Halloween"
	ThemeDayOfTheDead Theme = "Day of the Dead Mexico"
	ThemeThanksgiving Theme = "Thanksgiving"
	ThemeChristmas    Theme = "Christmas"
)

// String returns the theme label.
func (t Theme) String() string {
	return string(t)
}

// ThemeFor derives the theme from the calendar date of t.
// Seasonal themes override the General default.
func ThemeFor(t time.Time) Theme {
	month, day := t.Month(), t.Day()
	switch {
	case month == time.February:
		return ThemeValentines
	case month == time.October && day >= 15:
		return ThemeHalloween
	case month == time.November && (day == 1 || day == 2):
		return ThemeDayOfTheDead
	case month == time.November && day >= 22 && day <= 28:
		return ThemeThanksgiving
	case month == time.December:
		return ThemeChristmas
	default:
		return ThemeGeneral
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT
// ══════════════════════════════════════════════════════════════════════════════

// TierCount is the number of difficulty tiers in a set.
const TierCount = 4

// Content is one exercise in one language.
type Content struct {
	Title    string `json:"Title"`
	Exercise string `json:"Exercise"`
	Examples string `json:"Examples"`
	Hints    string `json:"Hints"`
}

// IsComplete reports whether title and body are present.
func (c Content) IsComplete() bool {
	return strings.TrimSpace(c.Title) != "" && strings.TrimSpace(c.Exercise) != ""
}

// Tier is one difficulty level in both languages.
type Tier struct {
	EN Content `json:"en"`
	ES Content `json:"es"`
}

// In returns the content for the language code, English by default.
func (t Tier) In(lang string) Content {
	if lang == "es" {
		return t.ES
	}
	return t.EN
}

// Tiers holds the four difficulty levels.
type Tiers struct {
	Easy         Tier `json:"easy"`
	Intermediate Tier `json:"intermediate"`
	Hard         Tier `json:"hard"`
	Extreme      Tier `json:"extreme"`
}

// ByDifficulty returns the tier for a difficulty name.
func (t Tiers) ByDifficulty(difficulty string) (Tier, bool) {
	switch difficulty {
	case "easy":
		return t.Easy, true
	case "intermediate":
		return t.Intermediate, true
	case "hard":
		return t.Hard, true
	case "extreme":
		return t.Extreme, true
	default:
		return Tier{}, false
	}
}

// List returns the tiers in ascending difficulty.
func (t Tiers) List() [TierCount]Tier {
	return [TierCount]Tier{t.Easy, t.Intermediate, t.Hard, t.Extreme}
}

// ══════════════════════════════════════════════════════════════════════════════
// SET
// ══════════════════════════════════════════════════════════════════════════════

// Set is the exercise set for one calendar date.
type Set struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD in the reference timezone
	Theme     Theme     `json:"theme"`
	Exercise  Tiers     `json:"exercise"`
	CreatedAt time.Time `json:"createdAt"`
}

// Matches reports whether the set was created for the given date and theme.
func (s *Set) Matches(date string, theme Theme) bool {
	return s != nil && s.Date == date && s.Theme == theme
}

// Servable reports whether the set may be served for (date, theme):
// an exact match, or the General fallback for the same date.
func (s *Set) Servable(date string, theme Theme) bool {
	return s.Matches(date, theme) || s.Matches(date, ThemeGeneral)
}

// Titles returns the English titles in tier order.
func (s *Set) Titles() [TierCount]string {
	var titles [TierCount]string
	for i, t := range s.Exercise.List() {
		titles[i] = t.EN.Title
	}
	return titles
}

// Assemble builds the tiers from English and Spanish lists of TierCount items.
func Assemble(en, es []Content) (Tiers, error) {
	if len(en) != TierCount || len(es) != TierCount {
		return Tiers{}, ErrWrongTierCount
	}
	for i := range en {
		if !en[i].IsComplete() || !es[i].IsComplete() {
			return Tiers{}, ErrIncompleteContent
		}
	}
	return Tiers{
		Easy:         Tier{EN: en[0], ES: es[0]},
		Intermediate: Tier{EN: en[1], ES: es[1]},
		Hard:         Tier{EN: en[2], ES: es[2]},
		Extreme:      Tier{EN: en[3], ES: es[3]},
	}, nil
}

// CollidesWith reports whether any title repeats the same-tier title of a recent set.
func CollidesWith(titles [TierCount]string, recent []*Set) bool {
	for _, r := range recent {
		if r == nil {
			continue
		}
		rt := r.Titles()
		for i := range titles {
			if titles[i] != "" && titles[i] == rt[i] {
				return true
			}
		}
	}
	return false
}

// TitlesOf returns the titles of a list of English contents.
func TitlesOf(en []Content) [TierCount]string {
	var titles [TierCount]string
	for i := 0; i < len(en) && i < TierCount; i++ {
		titles[i] = en[i].Title
	}
	return titles
}
