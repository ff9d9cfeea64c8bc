package sitescraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"dgesscraper/lib/dges"

	"github.com/stretchr/testify/require"
)

var (
	contest2022 = dges.Contest{Year: 2022, Phase: dges.PhaseFirst}

	aveiro = dges.School{Type: dges.SchoolUniversity, Code: "0300", Name: "Universidade de Aveiro"}
	porto  = dges.School{Type: dges.SchoolPolytechnic, Code: "3100", Name: "Instituto Politécnico do Porto"}

	biologia    = dges.Course{Code: "9003", Name: "Biologia"}
	medicina    = dges.Course{Code: "9500", Name: "Medicina"}
	informatica = dges.Course{Code: "8014", Name: "Engenharia Informática"}
)

// fakeSite serves canned hierarchy data and scripted failures, counting
// every fetch per coordinate.
type fakeSite struct {
	mu sync.Mutex

	schools  map[dges.Contest][]dges.School
	courses  map[string][]dges.Course
	students map[dges.CourseRef][]dges.StudentEntry

	// scripted errors, returned on every call
	studentErrs map[dges.CourseRef]error

	calls map[string]int

	// optional per-fetch hook, called before answering
	onFetchStudents func(ctx context.Context, ref dges.CourseRef)
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		schools: map[dges.Contest][]dges.School{
			contest2022: {aveiro, porto},
		},
		courses: map[string][]dges.Course{
			contest2022.String() + aveiro.Code: {biologia, medicina},
			contest2022.String() + porto.Code:  {informatica},
		},
		students: map[dges.CourseRef][]dges.StudentEntry{
			{Contest: contest2022, School: aveiro, Course: biologia}: {
				{Place: 1, GovID: 12345, Name: "Maria Silva", Option: 1, Grade: 1855, Accepted: true},
				{Place: 2, GovID: 67890, Name: "João Santos", Option: 3, Grade: 1710},
			},
			{Contest: contest2022, School: aveiro, Course: medicina}: {},
			{Contest: contest2022, School: porto, Course: informatica}: {
				{Place: 1, GovID: 11122, Name: "Ana Costa", Option: 2, Grade: 1500, Accepted: true},
			},
		},
		studentErrs: map[dges.CourseRef]error{},
		calls:       map[string]int{},
	}
}

func (f *fakeSite) count(key string) {
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()
}

func (f *fakeSite) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeSite) FetchSchools(ctx context.Context, contest dges.Contest) ([]dges.School, error) {
	f.count("schools:" + contest.String())
	schools, ok := f.schools[contest]
	if !ok {
		return nil, fmt.Errorf("%s: %w", contest, dges.ErrPageNotFound)
	}
	return schools, nil
}

func (f *fakeSite) FetchCourses(ctx context.Context, contest dges.Contest, school dges.School) ([]dges.Course, error) {
	f.count("courses:" + contest.String() + school.Code)
	courses, ok := f.courses[contest.String()+school.Code]
	if !ok {
		return nil, fmt.Errorf("%s / %s: %w", contest, school, dges.ErrPageNotFound)
	}
	return courses, nil
}

func (f *fakeSite) FetchStudents(ctx context.Context, ref dges.CourseRef) ([]dges.StudentEntry, error) {
	f.count("students:" + ref.String())
	if f.onFetchStudents != nil {
		f.onFetchStudents(ctx, ref)
	}
	f.mu.Lock()
	err := f.studentErrs[ref]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	students, ok := f.students[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, dges.ErrPageNotFound)
	}
	return students, nil
}

func universal2022() dges.Filter {
	return dges.UniversalFilter{Years: []int{2022}}
}

func TestScrapeBuildsDatabase(t *testing.T) {
	site := newFakeSite()
	db, failed, err := Scrape(context.Background(), site, universal2022(), Options{Workers: 4})
	require.NoError(t, err)
	require.Empty(t, failed)

	// the 2022 contest exists; second and third phase pages do not,
	// which is the server's authoritative answer, not a failure
	require.True(t, db.Contains(contest2022))
	require.True(t, db.Contains(dges.Contest{Year: 2022, Phase: dges.PhaseSecond}))
	require.Empty(t, db.SchoolList(dges.Contest{Year: 2022, Phase: dges.PhaseSecond}))

	ref := dges.CourseRef{Contest: contest2022, School: aveiro, Course: biologia}
	entries, ok := db.Get(ref)
	require.True(t, ok)
	require.Len(t, entries, 2)

	// medicina was attempted and had no candidates: empty, not absent
	entries, ok = db.Get(dges.CourseRef{Contest: contest2022, School: aveiro, Course: medicina})
	require.True(t, ok)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestRetryBudgetExhaustedExactly(t *testing.T) {
	site := newFakeSite()
	ref := dges.CourseRef{Contest: contest2022, School: porto, Course: informatica}
	site.studentErrs[ref] = errors.New("connection reset")

	db, failed, err := Scrape(context.Background(), site, universal2022(), Options{Workers: 1, Retries: 3})
	require.NoError(t, err)

	require.Equal(t, 3, site.callCount("students:"+ref.String()))
	require.Len(t, failed, 1)
	require.Equal(t, StageStudents, failed[0].Stage)
	require.Equal(t, informatica, failed[0].Course)
	require.Equal(t, 3, failed[0].Attempts)
	require.ErrorContains(t, failed[0].Err, "connection reset")

	// the failed cell stays absent; everything else was still scraped
	_, ok := db.Get(ref)
	require.False(t, ok)
	_, ok = db.Get(dges.CourseRef{Contest: contest2022, School: aveiro, Course: biologia})
	require.True(t, ok)
}

func TestNotFoundRecordedOnceNeverRetried(t *testing.T) {
	site := newFakeSite()
	ref := dges.CourseRef{Contest: contest2022, School: aveiro, Course: medicina}
	delete(site.students, ref)

	db, failed, err := Scrape(context.Background(), site, universal2022(), Options{Workers: 4, Retries: 5})
	require.NoError(t, err)
	require.Empty(t, failed)

	require.Equal(t, 1, site.callCount("students:"+ref.String()))
	entries, ok := db.Get(ref)
	require.True(t, ok)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestWorkerCountDoesNotChangeResult(t *testing.T) {
	serial, failed, err := Scrape(context.Background(), newFakeSite(), universal2022(), Options{Workers: 1})
	require.NoError(t, err)
	require.Empty(t, failed)

	parallel, failed, err := Scrape(context.Background(), newFakeSite(), universal2022(), Options{Workers: 8})
	require.NoError(t, err)
	require.Empty(t, failed)

	require.True(t, serial.Equal(parallel))
}

func TestConfigurationErrors(t *testing.T) {
	site := newFakeSite()

	_, _, err := Scrape(context.Background(), site, universal2022(), Options{Workers: 0})
	require.Error(t, err)

	// a filter with no contest enumeration cannot drive a scrape
	_, _, err = Scrape(context.Background(), site, dges.UniversalFilter{}, Options{Workers: 1})
	require.ErrorIs(t, err, ErrNoContests)

	// rejected before any network activity
	require.Empty(t, site.calls)
}

func TestCancellationKeepsCompletedWork(t *testing.T) {
	site := newFakeSite()
	ctx, cancel := context.WithCancel(context.Background())

	// serial run: cancel as soon as the first candidate page finishes,
	// so nothing after it is dispatched
	var first dges.CourseRef
	site.onFetchStudents = func(_ context.Context, ref dges.CourseRef) {
		if first == (dges.CourseRef{}) {
			first = ref
			cancel()
		}
	}

	db, failed, err := Scrape(ctx, site, universal2022(), Options{Workers: 1})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, failed)

	// the fetch that was in flight when the run was cancelled completed
	// and was kept
	entries, ok := db.Get(first)
	require.True(t, ok)
	require.Equal(t, site.students[first], entries)

	// exactly one candidate page was fetched
	total := 0
	for ref := range site.students {
		total += site.callCount("students:" + ref.String())
	}
	require.Equal(t, 1, total)
}

func TestCachedRunSkipsFetches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.dges")

	first, failed, err := Scrape(context.Background(), newFakeSite(), universal2022(), Options{
		Workers: 4, CachePath: path,
	})
	require.NoError(t, err)
	require.Empty(t, failed)

	// a second run against the same cache asks the server for nothing
	site := newFakeSite()
	second, failed, err := Scrape(context.Background(), site, universal2022(), Options{
		Workers: 4, CachePath: path,
	})
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Empty(t, site.calls)
	require.True(t, first.Equal(second))
}

func TestFailedCoordinateRetriedOnNextRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.dges")
	ref := dges.CourseRef{Contest: contest2022, School: porto, Course: informatica}

	site := newFakeSite()
	site.studentErrs[ref] = errors.New("rate limited")
	_, failed, err := Scrape(context.Background(), site, universal2022(), Options{
		Workers: 2, CachePath: path,
	})
	require.NoError(t, err)
	require.Len(t, failed, 1)

	// the failure left the cell absent, so a later run fetches just it
	site = newFakeSite()
	db, failed, err := Scrape(context.Background(), site, universal2022(), Options{
		Workers: 2, CachePath: path,
	})
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Equal(t, map[string]int{"students:" + ref.String(): 1}, site.calls)

	entries, ok := db.Get(ref)
	require.True(t, ok)
	require.Len(t, entries, 1)
}

func TestFilterPrunesBeforeFetch(t *testing.T) {
	site := newFakeSite()
	filter := dges.FuncFilter{
		ContestList: []dges.Contest{contest2022},
		School: func(_ dges.Contest, s dges.School) bool {
			return s.Code == aveiro.Code
		},
		Course: func(_ dges.Contest, _ dges.School, c dges.Course) bool {
			return c.Code == biologia.Code
		},
	}

	db, failed, err := Scrape(context.Background(), site, filter, Options{Workers: 2})
	require.NoError(t, err)
	require.Empty(t, failed)

	require.Zero(t, site.callCount("courses:"+contest2022.String()+porto.Code))
	require.Zero(t, site.callCount("students:"+dges.CourseRef{Contest: contest2022, School: aveiro, Course: medicina}.String()))

	_, ok := db.Get(dges.CourseRef{Contest: contest2022, School: aveiro, Course: biologia})
	require.True(t, ok)
	_, ok = db.Get(dges.CourseRef{Contest: contest2022, School: aveiro, Course: medicina})
	require.False(t, ok)
}

func TestProgressEventsAdvisory(t *testing.T) {
	var mu sync.Mutex
	byStage := map[Stage]int{}

	_, _, err := Scrape(context.Background(), newFakeSite(), universal2022(), Options{
		Workers: 4,
		Progress: func(e Event) {
			mu.Lock()
			if e.Done > byStage[e.Stage] {
				byStage[e.Stage] = e.Done
			}
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	// 3 contest pages (one real, two not-found), 2 course lists, 3
	// candidate pages
	require.Equal(t, 3, byStage[StageSchools])
	require.Equal(t, 2, byStage[StageCourses])
	require.Equal(t, 3, byStage[StageStudents])
}
