package model

// NotAvailable is stored in any citation field that could not be parsed
const NotAvailable = "N/A"

// Citation is a bibliographic reference returned by the evidence index
type Citation struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Journal string `json:"journal"`
	Year    string `json:"year"`
	Link    string `json:"link"`
}

// EvidenceMode records whether evidence was requested for a claim and,
// if so, what came back. A requested search may legitimately return nothing.
type EvidenceMode struct {
	requested bool
	citations []Citation
}

// NoEvidence is the mode used when the caller supplied no sources
func NoEvidence() EvidenceMode {
	return EvidenceMode{}
}

// RequestedEvidence wraps the citations returned by a search
func RequestedEvidence(citations []Citation) EvidenceMode {
	return EvidenceMode{requested: true, citations: citations}
}

// Requested reports whether an evidence search ran
func (m EvidenceMode) Requested() bool {
	return m.requested
}

// Citations returns the retrieved citations (nil when not requested)
func (m EvidenceMode) Citations() []Citation {
	return m.citations
}
