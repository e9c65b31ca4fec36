package harvest

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
)

// Fixture serves items from a YAML file. The file is re-read on every
// fetch so edits apply without a restart.
//
//	subjects:
//	  drsun:
//	    author: Dr. Sun
//	    bio: Physician
//	    items:
//	      - content: Vitamin D improves mood
//	        timestamp: 2026-10-01T09:00:00Z
type Fixture struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
}

type fixtureFile struct {
	Subjects map[string]fixtureSubject `yaml:"subjects"`
}

type fixtureSubject struct {
	Author         string        `yaml:"author"`
	Bio            string        `yaml:"bio"`
	ProfileImage   string        `yaml:"profileImage"`
	FollowersCount string        `yaml:"followersCount"`
	Items          []fixtureItem `yaml:"items"`
}

type fixtureItem struct {
	Content   string `yaml:"content"`
	Timestamp string `yaml:"timestamp"`
}

// NewFixture creates a fixture harvester reading path
func NewFixture(path string, opts ...Option) (*Fixture, error) {
	if path == "" {
		return nil, fmt.Errorf("fixture path is required")
	}
	o := buildOptions(opts)
	return &Fixture{path: path, logger: o.logger, now: o.now}, nil
}

// Fetch returns the subject's items inside window, profile fields copied
// onto each. An unknown subject is a harvest failure.
func (f *Fixture) Fetch(ctx context.Context, subjectID string, window model.TimeRange) ([]model.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, unavailable(fmt.Errorf("read fixture: %w", err))
	}

	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, unavailable(fmt.Errorf("parse fixture %s: %w", f.path, err))
	}

	subject, ok := file.Subjects[subjectID]
	if !ok {
		return nil, unavailable(fmt.Errorf("subject %q not in fixture %s", subjectID, f.path))
	}

	items := make([]model.RawItem, 0, len(subject.Items))
	for _, it := range subject.Items {
		if it.Content == "" {
			continue
		}
		items = append(items, model.RawItem{
			Content:        it.Content,
			Author:         orDefault(subject.Author, subjectID),
			Timestamp:      orDefault(it.Timestamp, model.NoDate),
			Bio:            orDefault(subject.Bio, model.NoBio),
			ProfileImage:   orDefault(subject.ProfileImage, model.NoProfileImage),
			FollowersCount: orDefault(subject.FollowersCount, model.NoFollowersCount),
		})
	}

	kept := FilterWindow(items, window, f.now())
	f.logger.Debug("fixture harvested",
		zap.String("subject", subjectID),
		zap.Int("items", len(items)),
		zap.Int("in_window", len(kept)))
	return kept, nil
}
