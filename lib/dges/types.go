// Package dges holds the data model for Portuguese public higher
// education access contests: coordinate types identifying a location in
// the DGES website hierarchy (contest -> school -> course), the student
// records found at the leaves, and the database that stores them.
package dges

import (
	"cmp"
	"fmt"
)

// Phase is one of the three phases of an access contest.
type Phase int

const (
	PhaseFirst  Phase = 1
	PhaseSecond Phase = 2
	PhaseThird  Phase = 3
)

// AllPhases in server order.
var AllPhases = []Phase{PhaseFirst, PhaseSecond, PhaseThird}

func (p Phase) String() string {
	switch p {
	case PhaseFirst:
		return "1st"
	case PhaseSecond:
		return "2nd"
	case PhaseThird:
		return "3rd"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Contest is one run of the admissions process, identified by value.
type Contest struct {
	Year  int
	Phase Phase
}

func (c Contest) String() string {
	return fmt.Sprintf("%d/%s", c.Year, c.Phase)
}

// Compare orders contests by (year, phase).
func (c Contest) Compare(other Contest) int {
	if r := cmp.Compare(c.Year, other.Year); r != 0 {
		return r
	}
	return cmp.Compare(int(c.Phase), int(other.Phase))
}

// SchoolType distinguishes universities from polytechnical schools.
// The two are listed on separate pages by the server.
type SchoolType int

const (
	SchoolUniversity SchoolType = iota + 1
	SchoolPolytechnic
)

var AllSchoolTypes = []SchoolType{SchoolUniversity, SchoolPolytechnic}

// ServerCode is the identifier the server uses for this school type in
// request URLs ("CodR").
func (t SchoolType) ServerCode() string {
	if t == SchoolUniversity {
		return "11"
	}
	return "12"
}

func (t SchoolType) String() string {
	if t == SchoolUniversity {
		return "university"
	}
	return "polytechnic"
}

// School is a higher education school. Code is the server's stable
// identifier, unique within a contest.
type School struct {
	Type SchoolType
	Code string
	Name string
}

func (s School) String() string {
	return fmt.Sprintf("%s %s", s.Code, s.Name)
}

// Course is a course provided by a school. Code is unique within the
// school.
type Course struct {
	Code string
	Name string
}

func (c Course) String() string {
	return fmt.Sprintf("%s %s", c.Code, c.Name)
}

// StudentEntry is one candidate to one course, as listed on a candidate
// page. Grades are on a 0-2000 scale (the website shows 0-200 with one
// decimal place).
type StudentEntry struct {
	// Place in the list of candidates, ordered by grade.
	Place int
	// The first 3 and last 2 digits of the candidate's government ID,
	// combined into a single integer. The website redacts the middle
	// digits.
	GovID int
	Name  string
	// Preference of the candidate for this course (1 to 6).
	Option int

	Grade      int
	GradeExams int
	Grade12    int
	Grade1011  int

	// Whether the candidate was placed in this course. A candidate can
	// beat the admission cutoff and still not be placed, having been
	// accepted into a course higher up their option list.
	Accepted bool
}

// CourseRef fully qualifies one course: the leaf coordinate of the
// hierarchy and the unit of scrape work.
type CourseRef struct {
	Contest Contest
	School  School
	Course  Course
}

func (r CourseRef) String() string {
	return fmt.Sprintf("%s / %s / %s", r.Contest, r.School, r.Course)
}

// Compare orders refs by (contest, school code, school type, course
// code) for deterministic reporting.
func (r CourseRef) Compare(other CourseRef) int {
	if c := r.Contest.Compare(other.Contest); c != 0 {
		return c
	}
	if c := cmp.Compare(r.School.Code, other.School.Code); c != 0 {
		return c
	}
	if c := cmp.Compare(int(r.School.Type), int(other.School.Type)); c != 0 {
		return c
	}
	return cmp.Compare(r.Course.Code, other.Course.Code)
}
