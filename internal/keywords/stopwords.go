package keywords

import (
	"embed"
	"sort"
	"strings"
)

//go:embed stopwords/*.txt
var stopwordFS embed.FS

// SupportedLanguages lists the languages with a bundled stopword list.
func SupportedLanguages() []string {
	entries, err := stopwordFS.ReadDir("stopwords")
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(langs)
	return langs
}

// Stopwords returns the bundled list for lang merged with custom words,
// lowercased and de-duplicated. Unknown languages yield only the custom words.
func Stopwords(lang string, custom []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	data, err := stopwordFS.ReadFile("stopwords/" + strings.ToLower(lang) + ".txt")
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			add(line)
		}
	}
	for _, w := range custom {
		add(w)
	}
	return out
}
