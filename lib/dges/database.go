package dges

import (
	"iter"
	"slices"
	"sync"
)

// cell is the course-level entry of the database. The zero value means
// "course known but never attempted"; attempted with an empty slice
// means the server was asked and listed no candidates.
type cell struct {
	attempted bool
	students  []StudentEntry
}

type courseMap map[Course]cell

// a nil courseMap means the school's course list has not been scraped
// yet; the school key itself still records that the school exists.
type schoolMap map[School]courseMap

// Database stores candidate lists for any number of contests as a
// sparse three-level mapping contest -> school -> course. Key absence
// means "never visited"; at the course level an attempted-but-empty
// cell is kept distinct from an absent one, so resuming a scrape never
// re-fetches pages that genuinely had no candidates.
//
// All methods are safe for concurrent use. Iteration methods return
// restartable sequences over a point-in-time copy of the key space.
type Database struct {
	mu       sync.RWMutex
	contests map[Contest]schoolMap
}

func NewDatabase() *Database {
	return &Database{contests: map[Contest]schoolMap{}}
}

// PutSchools records the school list of a contest, overwriting any
// previous list. Course lists of the given schools start out unknown.
func (db *Database) PutSchools(contest Contest, schools []School) {
	m := make(schoolMap, len(schools))
	for _, school := range schools {
		m[school] = nil
	}
	db.mu.Lock()
	db.contests[contest] = m
	db.mu.Unlock()
}

// PutCourses records the course list of a school, overwriting any
// previous list. Candidate lists of the given courses start out
// unattempted. Missing ancestor entries are created.
func (db *Database) PutCourses(contest Contest, school School, courses []Course) {
	m := make(courseMap, len(courses))
	for _, course := range courses {
		m[course] = cell{}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	schools := db.contests[contest]
	if schools == nil {
		schools = schoolMap{}
		db.contests[contest] = schools
	}
	schools[school] = m
}

// Put records the candidate list of a course, overwriting any previous
// value. An empty (even nil) entries slice marks the course as
// attempted with zero candidates. Missing ancestor entries are created,
// so a present course always has a present school and contest.
func (db *Database) Put(ref CourseRef, entries []StudentEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	schools := db.contests[ref.Contest]
	if schools == nil {
		schools = schoolMap{}
		db.contests[ref.Contest] = schools
	}
	courses := schools[ref.School]
	if courses == nil {
		courses = courseMap{}
		schools[ref.School] = courses
	}
	if entries == nil {
		entries = []StudentEntry{}
	}
	courses[ref.Course] = cell{attempted: true, students: entries}
}

// Get returns the candidate list of a course. ok is false if the course
// cell is absent or was never attempted, including when any ancestor
// key is missing. An attempted course with no candidates returns an
// empty, non-nil slice.
func (db *Database) Get(ref CourseRef) (entries []StudentEntry, ok bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.contests[ref.Contest][ref.School][ref.Course]
	if !ok || !c.attempted {
		return nil, false
	}
	return c.students, true
}

// Contains reports whether a contest's school list has been scraped.
func (db *Database) Contains(contest Contest) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.contests[contest]
	return ok
}

// ContainsSchool reports whether a school's course list has been
// scraped.
func (db *Database) ContainsSchool(contest Contest, school School) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.contests[contest][school] != nil
}

// ContainsCourse reports whether a course's candidate list has been
// attempted (possibly with zero candidates).
func (db *Database) ContainsCourse(ref CourseRef) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.contests[ref.Contest][ref.School][ref.Course].attempted
}

func sortSchools(schools []School) {
	slices.SortFunc(schools, func(a, b School) int {
		if a.Code != b.Code {
			if a.Code < b.Code {
				return -1
			}
			return 1
		}
		return int(a.Type) - int(b.Type)
	})
}

func sortCourses(courses []Course) {
	slices.SortFunc(courses, func(a, b Course) int {
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})
}

func (db *Database) sortedContests() []Contest {
	db.mu.RLock()
	contests := make([]Contest, 0, len(db.contests))
	for contest := range db.contests {
		contests = append(contests, contest)
	}
	db.mu.RUnlock()
	slices.SortFunc(contests, Contest.Compare)
	return contests
}

func (db *Database) sortedSchools(contest Contest) []School {
	db.mu.RLock()
	schools := make([]School, 0, len(db.contests[contest]))
	for school := range db.contests[contest] {
		schools = append(schools, school)
	}
	db.mu.RUnlock()
	sortSchools(schools)
	return schools
}

func (db *Database) sortedCourses(contest Contest, school School) []Course {
	db.mu.RLock()
	courses := make([]Course, 0, len(db.contests[contest][school]))
	for course := range db.contests[contest][school] {
		courses = append(courses, course)
	}
	db.mu.RUnlock()
	sortCourses(courses)
	return courses
}

// SchoolList returns the scraped school list of a contest, sorted by
// school code. Empty when the contest was never visited.
func (db *Database) SchoolList(contest Contest) []School {
	return db.sortedSchools(contest)
}

// CourseList returns the scraped course list of a school, sorted by
// course code. Empty when the school's course list was never visited.
func (db *Database) CourseList(contest Contest, school School) []Course {
	return db.sortedCourses(contest, school)
}

func contestAllowed(f Filter, contest Contest) bool {
	allowed := f.Contests()
	if allowed == nil {
		return true
	}
	return slices.Contains(allowed, contest)
}

// Contests iterates over all scraped contests, ordered by year and
// phase.
func (db *Database) Contests() iter.Seq[Contest] {
	return func(yield func(Contest) bool) {
		for _, contest := range db.sortedContests() {
			if !yield(contest) {
				return
			}
		}
	}
}

// Schools iterates over schools accepted by the filter whose course
// lists have been scraped, together with their contest. A nil filter
// iterates everything.
func (db *Database) Schools(f Filter) iter.Seq2[Contest, School] {
	if f == nil {
		f = UniversalFilter{}
	}
	return func(yield func(Contest, School) bool) {
		for _, contest := range db.sortedContests() {
			if !contestAllowed(f, contest) {
				continue
			}
			for _, school := range db.sortedSchools(contest) {
				if !f.IncludeSchool(contest, school) {
					continue
				}
				if !db.ContainsSchool(contest, school) {
					continue
				}
				if !yield(contest, school) {
					return
				}
			}
		}
	}
}

// Courses iterates over attempted courses accepted by the filter,
// yielding each leaf coordinate with its candidate list. Courses whose
// candidate list was never attempted are skipped.
func (db *Database) Courses(f Filter) iter.Seq2[CourseRef, []StudentEntry] {
	if f == nil {
		f = UniversalFilter{}
	}
	return func(yield func(CourseRef, []StudentEntry) bool) {
		for contest, school := range db.Schools(f) {
			for _, course := range db.sortedCourses(contest, school) {
				if !f.IncludeCourse(contest, school, course) {
					continue
				}
				ref := CourseRef{Contest: contest, School: school, Course: course}
				entries, ok := db.Get(ref)
				if !ok {
					continue
				}
				if !yield(ref, entries) {
					return
				}
			}
		}
	}
}

// Students flattens iteration down to individual candidate entries. If
// the filter implements StudentFilter, its candidate predicate is
// applied as well.
func (db *Database) Students(f Filter) iter.Seq2[CourseRef, StudentEntry] {
	var sf StudentFilter
	if f != nil {
		sf, _ = f.(StudentFilter)
	}
	return func(yield func(CourseRef, StudentEntry) bool) {
		for ref, entries := range db.Courses(f) {
			for _, entry := range entries {
				if sf != nil && !sf.IncludeStudent(ref, entry) {
					continue
				}
				if !yield(ref, entry) {
					return
				}
			}
		}
	}
}

// Equal reports whether two databases hold exactly the same keys and
// cell states, including the distinction between unattempted and empty
// candidate lists.
func (db *Database) Equal(other *Database) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(db.contests) != len(other.contests) {
		return false
	}
	for contest, schools := range db.contests {
		otherSchools, ok := other.contests[contest]
		if !ok || len(schools) != len(otherSchools) {
			return false
		}
		for school, courses := range schools {
			otherCourses, ok := otherSchools[school]
			if !ok {
				return false
			}
			if (courses == nil) != (otherCourses == nil) || len(courses) != len(otherCourses) {
				return false
			}
			for course, c := range courses {
				oc, ok := otherCourses[course]
				if !ok || c.attempted != oc.attempted {
					return false
				}
				if !slices.Equal(c.students, oc.students) {
					return false
				}
			}
		}
	}
	return true
}
