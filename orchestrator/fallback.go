package orchestrator

import (
	"fmt"

	"github.com/dtce-ai/dtce-rag/schema"
)

// User-safe messages. Error details never reach the answer text.
const (
	retrievalFailureText = "I couldn't search the DTCE document library just now. Please try again in a moment, or rephrase your question."
	synthesisFailureText = "I'm sorry, I found relevant documents but couldn't generate an answer right now. Please try again shortly."
	internalFailureText  = "I'm sorry, something went wrong while processing your question. Please try again, or rephrase it."
	emptyQuestionText    = "Please ask a question about DTCE policies, procedures, standards, projects or clients."
)

// noDocumentsLine opens every answer produced without matching documents.
func noDocumentsLine(category schema.Category) string {
	if category == schema.CategoryGeneral {
		return "I couldn't find any DTCE documents matching your question."
	}
	return fmt.Sprintf("I couldn't find any DTCE %s documents matching your question.", category)
}

// staticGuidance is used when the model cannot provide category guidance.
var staticGuidance = map[schema.Category]string{
	schema.CategoryPolicy: `For policy questions, try:
1. Checking the Health & Safety, HR or Company Policies folders in SuiteFiles
2. Contacting HR or the office administrator
3. Asking your manager`,
	schema.CategoryProcedure: `For procedures, try:
1. Checking the Procedures and How to Handbook (H2H) folders
2. Looking in the Templates and Forms folders for the relevant document
3. Asking a colleague who has done this before`,
	schema.CategoryStandard: `For standards, try:
1. Checking the NZ Standards folder and the Technical Library
2. Looking the standard up through the Standards New Zealand subscription
3. Asking the engineering team`,
	schema.CategoryProject: `For project questions, try:
1. Searching again with the six-digit project number, e.g. 225001
2. Browsing the Projects folder by year code
3. Contacting the project manager`,
	schema.CategoryClient: `For client questions, try:
1. Looking in the client's project folders
2. Checking the Client Information folder
3. Contacting the account or project manager`,
	schema.CategoryGeneral: `Try:
1. Rephrasing your question with different keywords
2. Naming the folder, standard or project number you are interested in
3. Contacting the relevant team`,
}

func guidanceFor(category schema.Category) string {
	if g, ok := staticGuidance[category]; ok {
		return g
	}
	return staticGuidance[schema.CategoryGeneral]
}
