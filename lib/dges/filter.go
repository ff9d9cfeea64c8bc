package dges

import "slices"

// Filter restricts which parts of the website are scraped, or which
// parts of an already scraped Database are iterated through.
//
// Predicates must be pure: they are called once per coordinate per
// traversal, possibly from several scrape workers at once.
//
// Note that candidates cannot be filtered out of a scrape, as all of a
// course's candidates live on the same webpage; see StudentFilter for
// read-time filtering of individual entries.
type Filter interface {
	// Contests returns the contests accepted by this filter. A nil
	// slice means "no restriction": for database iteration every known
	// contest is considered, but a scrape run cannot proceed, as there
	// is no way to discover the set of available contests from the
	// server.
	Contests() []Contest

	// IncludeSchool decides whether a school's list of courses (and
	// transitively its candidate lists) should be considered.
	IncludeSchool(contest Contest, school School) bool

	// IncludeCourse decides whether a course's candidate list should
	// be considered.
	IncludeCourse(contest Contest, school School, course Course) bool
}

// StudentFilter is an optional extension of Filter that additionally
// excludes individual candidate entries during read-time iteration.
type StudentFilter interface {
	Filter
	IncludeStudent(ref CourseRef, entry StudentEntry) bool
}

// UniversalFilter accepts every school and every course for a given set
// of years. With no years it accepts everything, which is only valid
// for database iteration.
type UniversalFilter struct {
	Years []int
}

func (f UniversalFilter) Contests() []Contest {
	if f.Years == nil {
		return nil
	}
	years := slices.Clone(f.Years)
	slices.Sort(years)
	contests := make([]Contest, 0, len(years)*len(AllPhases))
	for _, year := range years {
		for _, phase := range AllPhases {
			contests = append(contests, Contest{Year: year, Phase: phase})
		}
	}
	return contests
}

func (f UniversalFilter) IncludeSchool(Contest, School) bool         { return true }
func (f UniversalFilter) IncludeCourse(Contest, School, Course) bool { return true }

// FuncFilter builds a custom filter out of plain functions. Nil
// predicate fields accept everything.
type FuncFilter struct {
	ContestList []Contest
	School      func(Contest, School) bool
	Course      func(Contest, School, Course) bool
}

func (f FuncFilter) Contests() []Contest { return f.ContestList }

func (f FuncFilter) IncludeSchool(contest Contest, school School) bool {
	if f.School == nil {
		return true
	}
	return f.School(contest, school)
}

func (f FuncFilter) IncludeCourse(contest Contest, school School, course Course) bool {
	if f.Course == nil {
		return true
	}
	return f.Course(contest, school, course)
}
