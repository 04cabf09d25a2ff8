package namespace

import (
	"regexp"
	"sort"
	"strconv"
)

// YearMapping pairs a calendar year with its project-number year code.
type YearMapping struct {
	Year int    `json:"year"`
	Code string `json:"code"`
}

var (
	yearPattern     = regexp.MustCompile(`\b(20\d{2})\b`)
	yearCodePattern = regexp.MustCompile(`\b(2\d{2})(\d{3})?\b`)
)

// YearToCode maps 2025 -> "225" when the year is inside the configured range.
func (k *Knowledge) YearToCode(year int) (string, bool) {
	if year < k.firstYear || year > k.lastYear {
		return "", false
	}
	return "2" + pad2(year%100), true
}

// CodeToYear maps "225" -> 2025 when the code is inside the configured range.
func (k *Knowledge) CodeToYear(code string) (int, bool) {
	if len(code) != 3 || code[0] != '2' {
		return 0, false
	}
	n, err := strconv.Atoi(code[1:])
	if err != nil {
		return 0, false
	}
	year := 2000 + n
	if year < k.firstYear || year > k.lastYear {
		return 0, false
	}
	return year, true
}

// IsProjectNumber reports whether s is a 6-digit number with a valid year-code prefix.
func (k *Knowledge) IsProjectNumber(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, ok := k.CodeToYear(s[:3])
	return ok
}

// ExtractYears finds both calendar years ("2024") and year codes ("224",
// "224015") in text. Results are distinct, in order of first appearance.
func (k *Knowledge) ExtractYears(text string) []YearMapping {
	var out []YearMapping
	seen := map[int]bool{}
	add := func(y int, code string) {
		if !seen[y] {
			seen[y] = true
			out = append(out, YearMapping{Year: y, Code: code})
		}
	}
	type hit struct {
		pos  int
		year int
		code string
	}
	var hits []hit
	for _, m := range yearPattern.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[m[2]:m[3]])
		if code, ok := k.YearToCode(y); ok {
			hits = append(hits, hit{m[0], y, code})
		}
	}
	for _, m := range yearCodePattern.FindAllStringSubmatchIndex(text, -1) {
		code := text[m[2]:m[3]]
		if y, ok := k.CodeToYear(code); ok {
			hits = append(hits, hit{m[0], y, code})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	for _, h := range hits {
		add(h.year, h.code)
	}
	return out
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
