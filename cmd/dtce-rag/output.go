package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dtce-ai/dtce-rag/schema"
)

var confidenceColors = map[schema.Confidence]*color.Color{
	schema.ConfidenceHigh:             color.New(color.FgGreen, color.Bold),
	schema.ConfidenceMedium:           color.New(color.FgGreen),
	schema.ConfidenceLow:              color.New(color.FgYellow),
	schema.ConfidenceGeneralKnowledge: color.New(color.FgCyan),
	schema.ConfidenceError:            color.New(color.FgRed, color.Bold),
}

func printAnswer(w io.Writer, ans schema.Answer) {
	fmt.Fprintln(w, ans.Text)
	fmt.Fprintln(w)

	c, ok := confidenceColors[ans.Confidence]
	if !ok {
		c = color.New(color.Reset)
	}
	c.Fprintf(w, "Confidence: %s", ans.Confidence)
	fmt.Fprintf(w, "  (category %s, %d documents)\n", ans.Category, ans.DocumentsConsidered)

	if len(ans.Sources) == 0 {
		return
	}
	color.New(color.Bold).Fprintln(w, "Sources:")
	for i, s := range ans.Sources {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, s.DisplayName)
		color.New(color.Faint).Fprintf(w, "      %s\n", s.Locator)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
