package pipeline

import "github.com/ppiankov/veracity/internal/model"

// Stage is a step of the per-item analysis chain
type Stage int

const (
	StageRelevanceCheck Stage = iota
	StageStatementExtraction
	StageEvidenceSearch
	StageComparison
	StageCategorization
	StageStatusClassification
	StageScoring
	StageDone
	StageDiscarded
)

var stageNames = [...]string{
	StageRelevanceCheck:       "relevance_check",
	StageStatementExtraction:  "statement_extraction",
	StageEvidenceSearch:       "evidence_search",
	StageComparison:           "comparison",
	StageCategorization:       "categorization",
	StageStatusClassification: "status_classification",
	StageScoring:              "scoring",
	StageDone:                 "done",
	StageDiscarded:            "discarded",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether the chain stops at s
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageDiscarded
}

// itemState is everything one chain knows about its item. Chains never
// share state.
type itemState struct {
	stage    Stage
	sources  []string
	notes    string
	relevant bool
	evidence model.EvidenceMode
	record   model.ClaimRecord
}

// transition returns the stage that follows st.stage, given the outputs
// already recorded in st. It has no side effects.
func transition(st itemState) Stage {
	switch st.stage {
	case StageRelevanceCheck:
		if !st.relevant {
			return StageDiscarded
		}
		return StageStatementExtraction
	case StageStatementExtraction:
		if st.record.Statement == "" {
			// kept with empty downstream fields, unlike a failed relevance check
			return StageDone
		}
		if len(st.sources) > 0 {
			return StageEvidenceSearch
		}
		return StageComparison
	case StageEvidenceSearch:
		return StageComparison
	case StageComparison:
		return StageCategorization
	case StageCategorization:
		return StageStatusClassification
	case StageStatusClassification:
		return StageScoring
	case StageScoring:
		return StageDone
	default:
		return st.stage
	}
}
