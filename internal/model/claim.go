package model

// Status is the verification verdict for a claim. The inference service
// produces it as free text; values outside the known set are kept verbatim.
type Status string

const (
	StatusVerified     Status = "Verified"
	StatusQuestionable Status = "Questionable"
	StatusDebunked     Status = "Debunked"
)

// Known reports whether s is one of the three legal verdicts
func (s Status) Known() bool {
	switch s {
	case StatusVerified, StatusQuestionable, StatusDebunked:
		return true
	}
	return false
}

// ClaimRecord is the analysis of one relevant raw item
type ClaimRecord struct {
	Item       RawItem    `json:"item"`
	Statement  string     `json:"statement"`
	AIAnalysis string     `json:"aiAnalysis"`
	Citations  []Citation `json:"citations"`
	Categories string     `json:"categories"` // comma-joined labels
	Status     Status     `json:"status"`
	TrustScore string     `json:"trustScore"` // integer 0-100 as text
}
