package engine

import (
	"strings"

	"golang.org/x/text/language"
)

// tesseractLangs maps ISO 639-1 bases to Tesseract traineddata names for
// the languages the original deployment targets. Unmapped hints pass
// through unchanged so callers can name traineddata files directly.
var tesseractLangs = map[string]string{
	"ja": "jpn",
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"zh": "chi_sim",
	"ko": "kor",
	"ru": "rus",
}

// CanonicalizeHints parses language hints into canonical BCP 47 base tags,
// dropping anything unparseable and de-duplicating while preserving order.
func CanonicalizeHints(hints []string) []string {
	out := make([]string, 0, len(hints))
	seen := make(map[string]bool, len(hints))
	for _, h := range hints {
		tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(h), "_", "-"))
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		s := base.String()
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// TesseractLanguages converts canonical hints to Tesseract language names.
func TesseractLanguages(hints []string) []string {
	canonical := CanonicalizeHints(hints)
	out := make([]string, 0, len(canonical))
	for _, c := range canonical {
		if mapped, ok := tesseractLangs[c]; ok {
			out = append(out, mapped)
			continue
		}
		out = append(out, c)
	}
	return out
}
