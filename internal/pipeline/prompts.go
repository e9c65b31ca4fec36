package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// negativeAnswer is the relevance sentinel that discards an item
const negativeAnswer = "NO"

func relevancePrompt(topic, content string) string {
	return fmt.Sprintf(`Check whether this statement concerns the topic %q: "%s". Return "YES" if it does and "NO" if it does not.`, topic, content)
}

func statementPrompt(topic, content string) string {
	return fmt.Sprintf(`If this post contains %s aspects, state its point as one short factual claim and return only that claim. If not, return nothing. The post: "%s"`, topic, content)
}

func comparisonPrompt(statement string, evidence model.EvidenceMode, notes string) string {
	var p string
	if evidence.Requested() {
		cites, _ := json.Marshal(evidence.Citations()) // plain strings, cannot fail
		p = fmt.Sprintf(`Compare this statement "%s" with the following journal results (%s). If the statement matches a result, cite it as a reference.`, statement, cites)
	} else {
		p = fmt.Sprintf(`Analyse whether this statement "%s" is valid or not.`, statement)
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		p += " Also " + notes
	}
	return p
}

func categoryPrompt(topic, statement string) string {
	return fmt.Sprintf(`Create %q categories for this statement "%s", for example Nutrition, Medicine, Mental Health. Return only the category names, separated by commas if there are several.`, topic, statement)
}

func statusPrompt(statement, analysis string) string {
	return fmt.Sprintf(`Give a verification status (Verified, Questionable, Debunked) for this statement "%s" given the conclusion "%s". Return only the status.`, statement, analysis)
}

func scorePrompt(statement, analysis string) string {
	return fmt.Sprintf(`Score how trustworthy this statement is from 0 to 100: "%s", given the conclusion "%s". Return only the number.`, statement, analysis)
}
