// Package digest posts a periodic team summary of logged work.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"worklogbot/internal/domain"
	"worklogbot/internal/report"
)

const defaultWindowDays = 1

type Source interface {
	Summarize(ctx context.Context, days int) (domain.AggregateReport, error)
}

type Poster interface {
	Post(ctx context.Context, text string) error
}

type Options struct {
	// Schedule is a standard 5-field cron expression, e.g. "0 19 * * 1-5".
	Schedule   string
	WindowDays int
	Location   *time.Location
	Catalog    *domain.Catalog
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("digest schedule is empty")
	}
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return sched, nil
}

// RunDigest builds one digest and posts it everywhere. It returns the text
// and the joined posting errors.
func RunDigest(ctx context.Context, src Source, opts Options, posters []Poster) (string, error) {
	days := opts.WindowDays
	if days <= 0 {
		days = defaultWindowDays
	}
	rep, err := src.Summarize(ctx, days)
	if err != nil {
		return "", fmt.Errorf("building digest: %w", err)
	}
	text := report.RenderDigest(rep, opts.Catalog)

	var errs []error
	for _, p := range posters {
		if err := p.Post(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	log.Printf("digest posted total=%d targets=%d failed=%d", rep.Total, len(posters), len(errs))
	return text, errors.Join(errs...)
}

// StartDigestScheduler runs RunDigest on the schedule until ctx is
// cancelled. It returns false without starting when the schedule is empty,
// invalid, or there is nowhere to post.
func StartDigestScheduler(ctx context.Context, src Source, opts Options, posters []Poster) bool {
	if strings.TrimSpace(opts.Schedule) == "" {
		log.Println("Digest disabled (digest_schedule not set)")
		return false
	}
	if len(posters) == 0 {
		log.Println("Digest disabled: no report channel configured")
		return false
	}
	sched, err := ParseSchedule(opts.Schedule)
	if err != nil {
		log.Printf("Digest disabled: %v", err)
		return false
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	log.Printf("Digest scheduled (cron: %s) window=%dd targets=%d", opts.Schedule, opts.WindowDays, len(posters))

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := RunDigest(ctx, src, opts, posters); err != nil {
				log.Printf("Digest error: %v", err)
			}
		}
	}()
	return true
}
