package worker

import (
	"context"
	"testing"
	"time"
)

func TestNewScheduler_BadTimezone(t *testing.T) {
	if _, err := NewScheduler("Not/AZone", nil); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestScheduler_BadExpression(t *testing.T) {
	s, err := NewScheduler("UTC", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add("not a cron", "x", func(context.Context) {}); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestScheduler_NextAfterStart(t *testing.T) {
	s, err := NewScheduler("UTC", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add("0 6 * * *", "daily", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	next := s.Next()
	if next.IsZero() {
		t.Fatal("expected a next activation")
	}
	if next.UTC().Hour() != 6 || next.Minute() != 0 {
		t.Errorf("expected 06:00 UTC, got %v", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("next activation %v is not in the future", next)
	}
}
