package model

import "time"

// SubjectAnalysis is the persisted result of the latest run for a subject.
// Claims are replaced wholesale on every run.
type SubjectAnalysis struct {
	SubjectID string        `json:"subjectId"`
	Claims    []ClaimRecord `json:"claims"`
	RunID     string        `json:"runId,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// LeaderboardEntry is a derived, never persisted, view of one subject
type LeaderboardEntry struct {
	Rank                int      `json:"rank"`
	SubjectID           string   `json:"id"`
	AverageTrustScore   string   `json:"trustScore"` // two decimals; empty when the subject has no claims
	Categories          []string `json:"categories"`
	Name                string   `json:"name"`
	ProfileImage        string   `json:"profileImage"`
	FollowersCount      string   `json:"followersCount"`
	VerifiedClaimsCount int      `json:"verifiedClaims"`
}

// HasAverage reports whether the average trust score is defined
func (e LeaderboardEntry) HasAverage() bool {
	return e.AverageTrustScore != ""
}
