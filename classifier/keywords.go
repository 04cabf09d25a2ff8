package classifier

import (
	"regexp"

	"github.com/dtce-ai/dtce-rag/schema"
)

type weighted struct {
	re     *regexp.Regexp
	weight float64
}

func w(pattern string, weight float64) weighted {
	return weighted{re: regexp.MustCompile(pattern), weight: weight}
}

// keywordTable scores each category; matched weights are summed and capped at 1.
var keywordTable = map[schema.Category][]weighted{
	schema.CategoryPolicy: {
		w(`\bpolic(y|ies)\b`, 0.5),
		w(`\bh&s\b|\bhealth (and|&) safety\b`, 0.4),
		w(`\bwell(ness|being)\b`, 0.4),
		w(`\bhr\b|\bhuman resources\b`, 0.3),
		w(`\bemployee handbook\b|\bcode of conduct\b`, 0.4),
		w(`\bdisciplinary\b|\bharassment\b|\bbullying\b`, 0.3),
		w(`\b(annual|sick|parental|bereavement) leave\b`, 0.3),
		w(`\bleave\b|\bholidays?\b`, 0.15),
		w(`\bprivacy\b|\binduction\b|\bexpenses?\b|\bkiwisaver\b`, 0.2),
	},
	schema.CategoryProcedure: {
		w(`\bprocedures?\b`, 0.5),
		w(`\bh2h\b|\bhow to handbook\b`, 0.5),
		w(`\bhow (do|can|should) (i|we)\b`, 0.3),
		w(`\bhow to\b`, 0.25),
		w(`\bworkflow\b|\bbest practice\b|\bmethodology\b`, 0.3),
		w(`\bguidelines?\b`, 0.3),
		w(`\bprocess\b`, 0.2),
		w(`\btemplates?\b|\bforms?\b|\bproformas?\b`, 0.3),
		w(`\bspreadsheets?\b|\bsteps?\b`, 0.15),
	},
	schema.CategoryStandard: {
		w(`\b(as/)?nzs\s*\d`, 0.6),
		w(`\bnzs\b|\bnzbc\b|\bbuilding code\b`, 0.5),
		w(`\bstandards?\b`, 0.4),
		w(`\b(iso|as)\s*\d{3,5}\b`, 0.4),
		w(`\bspecifications?\b|\bdesign criteria\b`, 0.3),
		w(`\bclause\b|\bcompliance\b|\bverification method\b`, 0.2),
		w(`\b\d+(\.\d+)?\s?(mpa|kpa|kn)\b|\bgrade \d{3}`, 0.15),
	},
	schema.CategoryProject: {
		w(`\bprojects?\b`, 0.4),
		w(`\bjobs?\b`, 0.3),
		w(`\b(past|previous|similar) (projects?|jobs?)\b`, 0.3),
		w(`\bbuilding consent\b|\bdrawings?\b`, 0.2),
		w(`\bsite\b|\bconstruction\b|\bresidential\b|\bcommercial\b`, 0.2),
		w(`\breports?\b|\bdevelopment\b`, 0.15),
	},
	schema.CategoryClient: {
		w(`\bclients?\b`, 0.5),
		w(`\bcustomers?\b`, 0.4),
		w(`\bcontact\b`, 0.4),
		w(`\bphone\b|\bemail\b|\be-mail\b|\baddress\b`, 0.3),
		w(`\bnzta\b|\bwaka kotahi\b`, 0.3),
		w(`\bcouncil\b|\bdeveloper\b|\barchitect\b|\bbuilder\b`, 0.2),
	},
}

var (
	contactPhrasing   = regexp.MustCompile(`\bcontact (details|number|info|information|person)\b|\b(phone|mobile) number\b|\bemail address\b|\bwho (is|was|are|were) (the|our) (client|contact|architect|builder|developer|owner)\b|\bget in touch\b`)
	standardsPhrasing = regexp.MustCompile(`\b(as/nzs|nzs|nzbc)\s*[a-h]?\d`)
	greeting          = regexp.MustCompile(`^(hi|hello|hey|kia ora|good (morning|afternoon|evening)|thanks|thank you|cheers)\b`)
	generalKnowledge  = regexp.MustCompile(`^(what is|what are|what's|whats|define|explain|convert|calculate|how many|how much|who invented|when was)\b`)
	internalMarker    = regexp.MustCompile(`\b(our|we|us|dtce|company|firm|internal|suitefiles)\b`)
)
