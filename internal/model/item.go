package model

// RawItem is a single public statement harvested for a subject.
// The profile fields are copied onto every item by the harvester.
type RawItem struct {
	Content        string `json:"content" yaml:"content"`
	Author         string `json:"author" yaml:"author"`
	Timestamp      string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // RFC3339 when known
	Bio            string `json:"bio" yaml:"bio"`
	ProfileImage   string `json:"profileImage" yaml:"profileImage"`
	FollowersCount string `json:"followersCount" yaml:"followersCount"`
}

// Harvester placeholders used when a profile field cannot be scraped.
const (
	NoBio            = "No bio available"
	NoProfileImage   = "No profile image"
	NoFollowersCount = "No followers count"
	NoDate           = "No date available"
)

// TimeRange bounds the harvest window
type TimeRange string

const (
	TimeRangeLastWeek  TimeRange = "lastWeek"
	TimeRangeLastMonth TimeRange = "lastMonth"
	TimeRangeLastYear  TimeRange = "lastYear"
	TimeRangeAllTime   TimeRange = "allTime"
)

// ParseTimeRange maps user input to a TimeRange. Empty input yields lastWeek.
func ParseTimeRange(s string) (TimeRange, bool) {
	switch TimeRange(s) {
	case "":
		return TimeRangeLastWeek, true
	case TimeRangeLastWeek, TimeRangeLastMonth, TimeRangeLastYear, TimeRangeAllTime:
		return TimeRange(s), true
	}
	return "", false
}
