package keywords

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	detector     lingua.LanguageDetector
	detectorOnce sync.Once
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.French, lingua.English).
			Build()
	})
	return detector
}

// DetectLanguage returns the ISO 639-1 code of text among the languages that
// have stopword lists, or fallback when detection is inconclusive.
func DetectLanguage(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return fallback
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// ResolveLanguage returns configured unless it is "auto", in which case the
// language is detected from text.
func ResolveLanguage(configured, text string) string {
	if strings.EqualFold(configured, "auto") {
		return DetectLanguage(text, "en")
	}
	return strings.ToLower(configured)
}
