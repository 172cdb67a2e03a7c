// Package progress converts memorization inputs (juz, pages, surahs) into page
// counts and Quran-completion percentages. All functions are pure; out-of-range
// inputs are clamped or defaulted rather than rejected.
package progress

import "math"

const (
	TotalPages = 604
	TotalJuz   = 30
)

// PagesPerJuz is the single pages-per-juz convention used everywhere (≈20.13).
const PagesPerJuz = float64(TotalPages) / float64(TotalJuz)

// InitialType describes how a student's prior memorization was measured at setup.
type InitialType string

const (
	InitialNone  InitialType = ""
	InitialJuz   InitialType = "juz"
	InitialPages InitialType = "pages"
	InitialSurah InitialType = "surah"
)

// Valid reports whether t is one of the known initial types.
func (t InitialType) Valid() bool {
	switch t {
	case InitialNone, InitialJuz, InitialPages, InitialSurah:
		return true
	}
	return false
}

// PagesFromJuz converts a juz count into pages.
func PagesFromJuz(juzCount int) int {
	return int(math.Round(float64(juzCount) * PagesPerJuz))
}

// StartPageFromJuz returns the first page of the given juz (1-based).
func StartPageFromJuz(juz int) int {
	if juz < 1 {
		juz = 1
	}
	if juz > TotalJuz {
		juz = TotalJuz
	}
	return int(math.Round(float64(juz-1)*PagesPerJuz)) + 1
}

// PagesFromSurahStart returns the mushaf page a surah starts on; unknown ids map to page 1.
func PagesFromSurahStart(surahID int) int {
	if s, ok := SurahByID(surahID); ok {
		return s.StartPage
	}
	return 1
}

// Percentage returns total/604 as a percentage rounded to two decimals, capped at 100.
func Percentage(totalPages int) float64 {
	pct := math.Round(float64(totalPages)/TotalPages*10000) / 100
	return math.Min(pct, 100)
}

// ClampPages bounds p to [0, 604].
func ClampPages(p int) int {
	return min(max(p, 0), TotalPages)
}

// ClampStartPage bounds p to [1, 604].
func ClampStartPage(p int) int {
	return min(max(p, 1), TotalPages)
}

// SeedPages seeds totalPagesMemorized from the setup baseline. Juz counts are
// converted with PagesPerJuz; page and surah values are taken as page counts.
func SeedPages(t InitialType, value int) int {
	switch t {
	case InitialJuz:
		return ClampPages(PagesFromJuz(value))
	case InitialPages, InitialSurah:
		return ClampPages(value)
	default:
		return 0
	}
}

// AddPages adds a session's werd to total, never exceeding 604 nor decreasing.
func AddPages(total, werd int) int {
	if werd < 0 {
		werd = 0
	}
	return ClampPages(total + werd)
}
