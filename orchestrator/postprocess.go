package orchestrator

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	citationForms = regexp.MustCompile(`(?i)\[\s*(?:source:\s*)?(?:document|doc)\.?\s*#?\s*(\d+)\s*\]`)
	citationList  = regexp.MustCompile(`\[\s*(\d+(?:\s*,\s*\d+)+)\s*\]`)
	citation      = regexp.MustCompile(`\[(\d+)\]`)
	// A sources heading followed only by list items or file names up to the end.
	sourcesBlock  = regexp.MustCompile(`(?i)\n[ \t]*(?:#{1,6}[ \t]*)?\**(?:sources|references|documents used)\**[ \t]*(?::[^\n]*)?(?:\n[ \t]*(?:(?:[-*•]|\d+[.)]|\[\d+\])[^\n]*|[^\n]*\.(?:pdf|docx?|xlsx?|pptx?|msg)\b[^\n]*)?)*\s*$`)
	gapBeforeMark = regexp.MustCompile(`(\S)[ \t]+([.,;!?])`)
	repeatedGap   = regexp.MustCompile(`(\S)[ \t]{2,}`)
)

// Postprocess rewrites citations to [n], removes references outside
// 1..documents and strips a trailing model-written sources block.
func Postprocess(text string, documents int) string {
	text = strings.TrimSpace(text)
	text = citationForms.ReplaceAllString(text, "[$1]")
	text = citationList.ReplaceAllStringFunc(text, func(m string) string {
		parts := strings.Split(strings.Trim(m, "[] \t"), ",")
		var b strings.Builder
		for _, p := range parts {
			b.WriteString("[" + strings.TrimSpace(p) + "]")
		}
		return b.String()
	})
	text = citation.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 1 || n > documents {
			return ""
		}
		return m
	})
	if loc := sourcesBlock.FindStringIndex(text); loc != nil && loc[0] > 0 {
		text = text[:loc[0]]
	}
	text = gapBeforeMark.ReplaceAllString(text, "$1$2")
	text = repeatedGap.ReplaceAllString(text, "$1 ")
	return strings.TrimSpace(text)
}
