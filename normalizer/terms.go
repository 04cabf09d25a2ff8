package normalizer

import (
	"regexp"
	"strings"
)

var (
	standardCode = regexp.MustCompile(`(?i)\b(AS/NZS|NZS|AS|ISO)\s*(\d{3,5}(?:\.\d+)*(?::\d{4})?)\b`)
	buildingCode = regexp.MustCompile(`(?i)\bNZBC\s*([A-H]\d{1,2}(?:/(?:AS|VM)\d{1,2})?)\b`)
	magnitude    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s?(mm|cm|km|kpa|mpa|knm|kn|kg|m)\b`)
	steelGrade   = regexp.MustCompile(`(?i)\bgrade\s?(\d{3}[el]?)\b`)
	timberGrade  = regexp.MustCompile(`(?i)\b(SG\d{1,2}|H\d\.\d|LVL\d{1,2})\b`)
	concreteMix  = regexp.MustCompile(`(?i)\bC(\d{2})/(\d{2})\b`)
)

var unitSpelling = map[string]string{
	"mm": "mm", "cm": "cm", "m": "m", "km": "km",
	"kpa": "kPa", "mpa": "MPa", "kn": "kN", "knm": "kNm", "kg": "kg",
}

type span struct{ start, end int }

// technicalTerms extracts standard codes, magnitudes with units and material
// grades from text, in canonical spelling. spans covers every match so bare
// number scans can skip them.
func technicalTerms(text string) (terms []string, spans []span) {
	add := func(term string, loc []int) {
		terms = append(terms, term)
		spans = append(spans, span{loc[0], loc[1]})
	}
	for _, m := range standardCode.FindAllStringSubmatchIndex(text, -1) {
		add(strings.ToUpper(text[m[2]:m[3]])+" "+text[m[4]:m[5]], m)
	}
	for _, m := range buildingCode.FindAllStringSubmatchIndex(text, -1) {
		add("NZBC "+strings.ToUpper(text[m[2]:m[3]]), m)
	}
	for _, m := range magnitude.FindAllStringSubmatchIndex(text, -1) {
		unit := unitSpelling[strings.ToLower(text[m[4]:m[5]])]
		add(text[m[2]:m[3]]+" "+unit, m)
	}
	for _, m := range steelGrade.FindAllStringSubmatchIndex(text, -1) {
		add("Grade "+strings.ToUpper(text[m[2]:m[3]]), m)
	}
	for _, m := range timberGrade.FindAllStringSubmatchIndex(text, -1) {
		add(strings.ToUpper(text[m[2]:m[3]]), m)
	}
	for _, m := range concreteMix.FindAllStringSubmatchIndex(text, -1) {
		add("C"+text[m[2]:m[3]]+"/"+text[m[4]:m[5]], m)
	}
	return terms, spans
}

func inSpans(pos int, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}
