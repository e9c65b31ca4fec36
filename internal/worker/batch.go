package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// RunFunc analyses one subject and reports how many claims it stored
type RunFunc func(ctx context.Context, subjectID string) (int, error)

// SubjectResult is the outcome of one subject in a batch
type SubjectResult struct {
	SubjectID string
	Claims    int
	Error     error
}

// GetError returns the error from the subject result
func (r *SubjectResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many subjects with bounded parallelism. A failing
// subject never stops the others.
type BatchProcessor struct {
	run         RunFunc
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(run RunFunc, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		run:         run,
		concurrency: concurrency,
	}
}

// ProcessSubjects runs every subject and returns results in input order
func (b *BatchProcessor) ProcessSubjects(ctx context.Context, subjectIDs []string) []*SubjectResult {
	results := make([]*SubjectResult, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, id := range subjectIDs {
		results[i] = &SubjectResult{SubjectID: id}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Error = err
				return nil
			}
			n, err := b.run(ctx, id)
			results[i].Claims = n
			results[i].Error = err
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// ProcessFile reads subject IDs from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*SubjectResult, error) {
	ids, err := ReadSubjectsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read subjects: %w", err)
	}

	return b.ProcessSubjects(ctx, ids), nil
}

// ReadSubjectsFromFile reads subject IDs from a file (one per line).
// Blank lines and # comments are skipped, duplicates dropped, and a leading
// @ is stripped.
func ReadSubjectsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "@")

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
