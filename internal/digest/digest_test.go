package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"worklogbot/internal/domain"
)

type fakeSource struct {
	days int
	rep  domain.AggregateReport
	err  error
}

func (f *fakeSource) Summarize(_ context.Context, days int) (domain.AggregateReport, error) {
	f.days = days
	rep := f.rep
	rep.WindowDays = days
	return rep, f.err
}

type fakePoster struct {
	posts []string
	err   error
}

func (f *fakePoster) Post(_ context.Context, text string) error {
	f.posts = append(f.posts, text)
	return f.err
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("0 19 * * 1-5")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	friday := time.Date(2026, 5, 8, 20, 0, 0, 0, time.UTC)
	if next := sched.Next(friday); !next.Equal(time.Date(2026, 5, 11, 19, 0, 0, 0, time.UTC)) {
		t.Fatalf("next after Friday evening = %s", next)
	}

	for _, bad := range []string{"", "every day", "0 19 * *", "@daily 5"} {
		if _, err := ParseSchedule(bad); err == nil {
			t.Fatalf("ParseSchedule(%q) should fail", bad)
		}
	}
}

func TestRunDigestPostsToAllTargets(t *testing.T) {
	src := &fakeSource{rep: domain.AggregateReport{
		Total:      2,
		ByEmployee: []domain.Count{{Key: "Olena", Count: 2}},
		ByCategory: []domain.Count{{Key: "CL1", Count: 2}},
	}}
	a, b := &fakePoster{}, &fakePoster{err: errors.New("channel_not_found")}

	text, err := RunDigest(context.Background(), src, Options{}, []Poster{a, b})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected posting error, got %v", err)
	}
	if src.days != defaultWindowDays {
		t.Fatalf("default window = %d", src.days)
	}
	if len(a.posts) != 1 || len(b.posts) != 1 || a.posts[0] != text {
		t.Fatal("every target must receive the digest")
	}
	if !strings.Contains(text, "Total records: 2") || !strings.Contains(text, "Short calls: 2") {
		t.Fatalf("digest = %s", text)
	}
}

func TestRunDigestSourceError(t *testing.T) {
	p := &fakePoster{}
	if _, err := RunDigest(context.Background(), &fakeSource{err: errors.New("ledger down")}, Options{WindowDays: 7}, []Poster{p}); err == nil {
		t.Fatal("expected error")
	}
	if len(p.posts) != 0 {
		t.Fatal("nothing may be posted without a report")
	}
}

func TestStartDigestSchedulerDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{}
	if StartDigestScheduler(ctx, src, Options{}, []Poster{&fakePoster{}}) {
		t.Fatal("empty schedule must not start")
	}
	if StartDigestScheduler(ctx, src, Options{Schedule: "0 19 * * *"}, nil) {
		t.Fatal("no targets must not start")
	}
	if StartDigestScheduler(ctx, src, Options{Schedule: "bogus"}, []Poster{&fakePoster{}}) {
		t.Fatal("invalid schedule must not start")
	}
	if !StartDigestScheduler(ctx, src, Options{Schedule: "0 19 * * *"}, []Poster{&fakePoster{}}) {
		t.Fatal("valid schedule should start")
	}
}
