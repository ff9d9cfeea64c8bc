// Package sitescraper walks the DGES website hierarchy (contest ->
// school -> course), fetching every page a filter accepts over a
// bounded pool of workers and merging the results into a database.
// Transient fetch failures are retried per coordinate and never abort
// the run; permanently failed coordinates are reported at the end.
package sitescraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"dgesscraper/lib/dges"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("sitescraper")

// Fetcher turns one coordinate into typed records. Implementations
// report dges.ErrPageNotFound (possibly wrapped) for the server's
// authoritative "nothing there"; every other error counts as transient
// and is retried.
type Fetcher interface {
	FetchSchools(ctx context.Context, contest dges.Contest) ([]dges.School, error)
	FetchCourses(ctx context.Context, contest dges.Contest, school dges.School) ([]dges.Course, error)
	FetchStudents(ctx context.Context, ref dges.CourseRef) ([]dges.StudentEntry, error)
}

// ErrNoContests is reported before any network activity when a scrape
// run is driven by a filter that does not enumerate contests. Scraping
// cannot discover the set of available contests from an empty database,
// so "no restriction" is only meaningful for read-time iteration.
var ErrNoContests = errors.New("sitescraper: filter does not enumerate contests")

// Stage is the hierarchy level a unit of work belongs to.
type Stage int

const (
	StageSchools Stage = iota
	StageCourses
	StageStudents
)

func (s Stage) String() string {
	switch s {
	case StageSchools:
		return "schools"
	case StageCourses:
		return "courses"
	case StageStudents:
		return "students"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// FailedCoordinate describes one coordinate whose fetch exhausted the
// retry budget. School and Course are zero below their stage.
type FailedCoordinate struct {
	Stage    Stage
	Contest  dges.Contest
	School   dges.School
	Course   dges.Course
	Attempts int
	Err      error
}

func (f FailedCoordinate) String() string {
	switch f.Stage {
	case StageSchools:
		return fmt.Sprintf("[%s] %s", f.Stage, f.Contest)
	case StageCourses:
		return fmt.Sprintf("[%s] %s / %s", f.Stage, f.Contest, f.School)
	default:
		return fmt.Sprintf("[%s] %s / %s / %s", f.Stage, f.Contest, f.School, f.Course)
	}
}

// Event reports scrape progress. Advisory only: consumers must not
// derive correctness from it.
type Event struct {
	Stage Stage
	Done  int
	Total int
}

type Options struct {
	// Workers bounds the number of concurrent fetches. Must be >= 1;
	// 1 gives a fully serial run, useful for debugging.
	Workers int
	// Retries is the attempt budget per coordinate, counting the first
	// attempt. Zero means DefaultRetries.
	Retries int
	// RetryDelay is the wait before re-attempting a transiently failed
	// coordinate. Zero means none.
	RetryDelay time.Duration
	// CachePath, when set, is loaded before the run resumes (missing
	// file starts fresh) and written after it; already cached pages
	// are not fetched again.
	CachePath string
	// Progress, when set, is called after every completed unit of
	// work. Called concurrently from workers.
	Progress func(Event)
}

// DefaultRetries is the attempt budget used when Options.Retries is 0.
const DefaultRetries = 3

// Scrape builds a database of every page accepted by the filter.
//
// The returned database is always usable, even when err != nil: a
// cancelled or partially failed run keeps everything fetched so far,
// with the coordinates that exhausted their retry budget listed
// separately. Configuration problems (bad worker count, a filter with
// no contest enumeration, a corrupt cache file) are reported before any
// network activity.
func Scrape(ctx context.Context, fetcher Fetcher, filter dges.Filter, opts Options) (*dges.Database, []FailedCoordinate, error) {
	if opts.Workers < 1 {
		return nil, nil, fmt.Errorf("sitescraper: worker count %d, must be at least 1", opts.Workers)
	}
	if filter == nil {
		return nil, nil, fmt.Errorf("sitescraper: nil filter")
	}
	contests := filter.Contests()
	if contests == nil {
		return nil, nil, ErrNoContests
	}

	db, err := dges.LoadCache(opts.CachePath)
	if err != nil {
		return nil, nil, err
	}

	failed, runErr := ScrapeInto(ctx, fetcher, filter, db, opts)

	if saveErr := db.SaveCache(opts.CachePath); saveErr != nil {
		runErr = errors.Join(runErr, saveErr)
	}
	return db, failed, runErr
}

// ScrapeInto is Scrape against a caller-provided database, without the
// cache load/save wrapping. Coordinates already present in db are
// treated as successfully scraped and skipped.
func ScrapeInto(ctx context.Context, fetcher Fetcher, filter dges.Filter, db *dges.Database, opts Options) ([]FailedCoordinate, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	if opts.Workers < 1 {
		return nil, fmt.Errorf("sitescraper: worker count %d, must be at least 1", opts.Workers)
	}
	contests := filter.Contests()
	if contests == nil {
		return nil, ErrNoContests
	}
	retries := opts.Retries
	if retries == 0 {
		retries = DefaultRetries
	}

	e := &engine{
		fetcher:    fetcher,
		db:         db,
		retries:    retries,
		retryDelay: opts.RetryDelay,
		workers:    opts.Workers,
		progress:   opts.Progress,
	}

	slog.InfoContext(ctx, "fetching school lists", "contests", len(contests))
	e.scrapeSchoolLists(ctx, contests)

	slog.InfoContext(ctx, "fetching course lists")
	e.scrapeCourseLists(ctx, filter, contests)

	slog.InfoContext(ctx, "fetching candidate lists")
	e.scrapeCandidateLists(ctx, filter, contests)

	slices.SortFunc(e.failed, func(a, b FailedCoordinate) int {
		if a.Stage != b.Stage {
			return int(a.Stage) - int(b.Stage)
		}
		ra := dges.CourseRef{Contest: a.Contest, School: a.School, Course: a.Course}
		rb := dges.CourseRef{Contest: b.Contest, School: b.School, Course: b.Course}
		return ra.Compare(rb)
	})
	return e.failed, ctx.Err()
}

type engine struct {
	fetcher    Fetcher
	db         *dges.Database
	retries    int
	retryDelay time.Duration
	workers    int
	progress   func(Event)

	mu     sync.Mutex
	failed []FailedCoordinate
}

// unit is one page fetch: coord for reporting, fetch to retrieve and
// store the records, and notFound to store the attempted-empty value
// when the server says the page does not exist.
type unit struct {
	coord    FailedCoordinate
	fetch    func(ctx context.Context) error
	notFound func()
}

// runStage executes units over the bounded worker pool. Cancellation
// stops dispatch; in-flight fetches run to completion so their results
// are kept.
func (e *engine) runStage(ctx context.Context, stage Stage, units []unit) {
	if len(units) == 0 {
		slog.InfoContext(ctx, "stage already cached", "stage", stage.String())
		return
	}

	var done int
	var doneMu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(e.workers)
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			e.runUnit(ctx, u)
			if e.progress != nil {
				doneMu.Lock()
				done++
				n := done
				doneMu.Unlock()
				e.progress(Event{Stage: stage, Done: n, Total: len(units)})
			}
			return nil
		})
	}
	g.Wait()
}

// runUnit drives a single coordinate through its task state machine.
func (e *engine) runUnit(ctx context.Context, u unit) {
	t := newTask(e.retries)
	for !t.terminal() {
		if ctx.Err() != nil {
			// Cancelled before a terminal state: the coordinate simply
			// stays absent from the database.
			return
		}
		t.start()
		err := u.fetch(ctx)
		switch {
		case err == nil:
			t.observe(taskSucceeded, nil)
		case errors.Is(err, dges.ErrPageNotFound):
			u.notFound()
			t.observe(taskNotFound, nil)
		default:
			t.observe(taskFailed, err)
			if t.state == taskPending {
				slog.WarnContext(ctx, "retrying coordinate",
					"coordinate", u.coord.String(),
					"attempt", t.attempts,
					"err", err,
				)
				e.wait(ctx)
			}
		}
	}

	if t.state == taskFailed {
		u.coord.Attempts = t.attempts
		u.coord.Err = t.lastErr
		slog.WarnContext(ctx, "coordinate failed permanently",
			"coordinate", u.coord.String(),
			"attempts", t.attempts,
			"err", t.lastErr,
		)
		e.mu.Lock()
		e.failed = append(e.failed, u.coord)
		e.mu.Unlock()
	}
}

func (e *engine) wait(ctx context.Context) {
	if e.retryDelay <= 0 {
		return
	}
	timer := time.NewTimer(e.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *engine) scrapeSchoolLists(ctx context.Context, contests []dges.Contest) {
	var units []unit
	for _, contest := range contests {
		if e.db.Contains(contest) {
			continue
		}
		units = append(units, unit{
			coord: FailedCoordinate{Stage: StageSchools, Contest: contest},
			fetch: func(ctx context.Context) error {
				schools, err := e.fetcher.FetchSchools(ctx, contest)
				if err != nil {
					return err
				}
				e.db.PutSchools(contest, schools)
				return nil
			},
			notFound: func() { e.db.PutSchools(contest, nil) },
		})
	}
	e.runStage(ctx, StageSchools, units)
}

func (e *engine) scrapeCourseLists(ctx context.Context, filter dges.Filter, contests []dges.Contest) {
	var units []unit
	for _, contest := range contests {
		if !e.db.Contains(contest) {
			continue // school list itself failed
		}
		for _, school := range e.db.SchoolList(contest) {
			if !filter.IncludeSchool(contest, school) {
				continue
			}
			if e.db.ContainsSchool(contest, school) {
				continue
			}
			units = append(units, unit{
				coord: FailedCoordinate{Stage: StageCourses, Contest: contest, School: school},
				fetch: func(ctx context.Context) error {
					courses, err := e.fetcher.FetchCourses(ctx, contest, school)
					if err != nil {
						return err
					}
					e.db.PutCourses(contest, school, courses)
					return nil
				},
				notFound: func() { e.db.PutCourses(contest, school, nil) },
			})
		}
	}
	e.runStage(ctx, StageCourses, units)
}

func (e *engine) scrapeCandidateLists(ctx context.Context, filter dges.Filter, contests []dges.Contest) {
	var units []unit
	for _, contest := range contests {
		if !e.db.Contains(contest) {
			continue
		}
		for _, school := range e.db.SchoolList(contest) {
			if !filter.IncludeSchool(contest, school) {
				continue
			}
			if !e.db.ContainsSchool(contest, school) {
				continue // course list itself failed
			}
			for _, course := range e.db.CourseList(contest, school) {
				if !filter.IncludeCourse(contest, school, course) {
					continue
				}
				ref := dges.CourseRef{Contest: contest, School: school, Course: course}
				if e.db.ContainsCourse(ref) {
					continue
				}
				units = append(units, unit{
					coord: FailedCoordinate{
						Stage:   StageStudents,
						Contest: contest,
						School:  school,
						Course:  course,
					},
					fetch: func(ctx context.Context) error {
						entries, err := e.fetcher.FetchStudents(ctx, ref)
						if err != nil {
							return err
						}
						e.db.Put(ref, entries)
						return nil
					},
					// The page existing with zero candidates and the
					// page not existing both prove the server had
					// nothing: record an attempted-empty cell either
					// way so the coordinate is never refetched.
					notFound: func() { e.db.Put(ref, nil) },
				})
			}
		}
	}
	e.runStage(ctx, StageStudents, units)
}
