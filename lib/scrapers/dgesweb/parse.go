package dgesweb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dgesscraper/lib/dges"
	"dgesscraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ErrTooManyRequests means the server answered with its rate-limit
// page instead of the requested content. Always a transient failure:
// back off and retry.
var ErrTooManyRequests = errors.New("dgesweb: too many requests")

// "número de pedidos" ("number of requests") only ever appears in the
// rate-limit message.
func detectTooManyRequests(html string) error {
	if strings.Contains(html, "número de pedidos") {
		return ErrTooManyRequests
	}
	return nil
}

// Option-list pages name every school/course as "<code> - <name>".
func stripCodePrefix(text string) (string, error) {
	clean := htmlutil.Sanitize(text)
	idx := strings.Index(clean, "-")
	if idx < 0 || idx+2 > len(clean) {
		return "", fmt.Errorf("invalid school / course name: %q", clean)
	}
	return strings.TrimSpace(clean[idx+1:]), nil
}

// parseOptionList handles the pages where the user picks what to visit
// next; the server uses the same <option> markup for school lists and
// course lists. Returns (code, name) pairs.
func parseOptionList(doc *goquery.Document) ([][2]string, error) {
	var pairs [][2]string
	var parseErr error
	doc.Find("option").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		code, ok := sel.Attr("value")
		if !ok {
			parseErr = fmt.Errorf("option without a value attribute")
			return false
		}
		name, err := stripCodePrefix(sel.Text())
		if err != nil {
			parseErr = err
			return false
		}
		pairs = append(pairs, [2]string{code, name})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("invalid option (school / course) list")
	}
	return pairs, nil
}

// ParseSchoolList scrapes a page listing the schools of one type in a
// contest. The school type is not recoverable from the markup, so the
// caller supplies it.
func ParseSchoolList(html string, schoolType dges.SchoolType) ([]dges.School, error) {
	if err := detectTooManyRequests(html); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	pairs, err := parseOptionList(doc)
	if err != nil {
		return nil, err
	}
	schools := make([]dges.School, len(pairs))
	for i, p := range pairs {
		schools[i] = dges.School{Type: schoolType, Code: p[0], Name: p[1]}
	}
	return schools, nil
}

// ParseCourseList scrapes a page listing the courses a school provided
// during a contest.
func ParseCourseList(html string) ([]dges.Course, error) {
	if err := detectTooManyRequests(html); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	pairs, err := parseOptionList(doc)
	if err != nil {
		return nil, err
	}
	courses := make([]dges.Course, len(pairs))
	for i, p := range pairs {
		courses[i] = dges.Course{Code: p[0], Name: p[1]}
	}
	return courses, nil
}

// The website redacts the middle digits of government IDs, showing
// "XXX(...)XX"; the remaining five digits still identify a student
// within a single course page.
func parseGovID(text string) (int, error) {
	idx := strings.Index(text, "(...)")
	if idx < 0 {
		return 0, fmt.Errorf("invalid ID number: %q", text)
	}
	n, err := strconv.Atoi(text[:idx] + text[idx+5:])
	if err != nil {
		return 0, fmt.Errorf("invalid ID number: %q", text)
	}
	return n, nil
}

// Final and exam averages are shown as "175,5"; scale to 0-2000.
func parseDecimalGrade(text string) (int, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal grade: %q", text)
	}
	return int(f * 10), nil
}

// 12th and 10th-11th grade averages are shown as integers; scale to
// 0-2000.
func parseIntegerGrade(text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid integer grade: %q", text)
	}
	return n * 10, nil
}

// AcceptedStudent identifies a placed student on an accepted-list page.
type AcceptedStudent struct {
	GovID int
	Name  string
}

// candidateTable finds the table body holding student rows. The site
// doesn't close its tags properly, but net/html repairs the tree during
// parsing, so the last ".caixa" box always carries the table.
func candidateTable(html string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	boxes := doc.Find(".caixa")
	if boxes.Length() == 0 {
		return nil, fmt.Errorf("candidate table not found")
	}
	return boxes.Last().Find("tbody"), nil
}

func hasEmptyMarker(table *goquery.Selection, markers ...string) bool {
	text := table.Text()
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func parseCandidateRow(row *goquery.Selection, accepted map[AcceptedStudent]bool) (dges.StudentEntry, error) {
	tds := row.Find("td")
	if tds.Length() != 8 {
		return dges.StudentEntry{}, fmt.Errorf("invalid candidate row: wrong number of columns")
	}
	texts := make([]string, 8)
	tds.Each(func(i int, sel *goquery.Selection) {
		texts[i] = htmlutil.Sanitize(sel.Text())
	})

	place, err := strconv.Atoi(texts[0])
	if err != nil {
		return dges.StudentEntry{}, fmt.Errorf("invalid candidate number: %q", texts[0])
	}
	govID, err := parseGovID(texts[1])
	if err != nil {
		return dges.StudentEntry{}, err
	}
	grade, err := parseDecimalGrade(texts[3])
	if err != nil {
		return dges.StudentEntry{}, err
	}
	option, err := strconv.Atoi(texts[4])
	if err != nil {
		return dges.StudentEntry{}, fmt.Errorf("invalid candidate option: %q", texts[4])
	}
	gradeExams, err := parseDecimalGrade(texts[5])
	if err != nil {
		return dges.StudentEntry{}, err
	}
	grade12, err := parseIntegerGrade(texts[6])
	if err != nil {
		return dges.StudentEntry{}, err
	}
	grade1011, err := parseIntegerGrade(texts[7])
	if err != nil {
		return dges.StudentEntry{}, err
	}

	return dges.StudentEntry{
		Place:      place,
		GovID:      govID,
		Name:       texts[2],
		Option:     option,
		Grade:      grade,
		GradeExams: gradeExams,
		Grade12:    grade12,
		Grade1011:  grade1011,
		Accepted:   accepted[AcceptedStudent{GovID: govID, Name: texts[2]}],
	}, nil
}

// ParseCandidateList scrapes the ordered list of candidates to a
// course. The accepted list (from ParseAcceptedList) marks which
// candidates were placed. A page stating the course had no candidates
// parses to an empty, non-nil slice.
func ParseCandidateList(html string, accepted []AcceptedStudent) ([]dges.StudentEntry, error) {
	if err := detectTooManyRequests(html); err != nil {
		return nil, err
	}
	table, err := candidateTable(html)
	if err != nil {
		return nil, err
	}
	if hasEmptyMarker(table, "não teve candidatos", "não contém dados") {
		return []dges.StudentEntry{}, nil
	}

	acceptedSet := make(map[AcceptedStudent]bool, len(accepted))
	for _, a := range accepted {
		acceptedSet[a] = true
	}

	var entries []dges.StudentEntry
	var parseErr error
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		entry, err := parseCandidateRow(row, acceptedSet)
		if err != nil {
			parseErr = err
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("invalid candidate list")
	}
	return entries, nil
}

// ParseAcceptedList scrapes the list of students placed in a course. A
// page stating the course had no placed students parses to an empty
// slice.
func ParseAcceptedList(html string) ([]AcceptedStudent, error) {
	if err := detectTooManyRequests(html); err != nil {
		return nil, err
	}
	table, err := candidateTable(html)
	if err != nil {
		return nil, err
	}
	if hasEmptyMarker(table, "não teve colocados", "não contém dados") {
		return []AcceptedStudent{}, nil
	}

	var accepted []AcceptedStudent
	var parseErr error
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		tds := row.Find("td")
		if tds.Length() != 2 {
			parseErr = fmt.Errorf("invalid accepted student row: wrong number of columns")
			return false
		}
		govID, err := parseGovID(htmlutil.Sanitize(tds.Eq(0).Text()))
		if err != nil {
			parseErr = err
			return false
		}
		accepted = append(accepted, AcceptedStudent{
			GovID: govID,
			Name:  htmlutil.Sanitize(tds.Eq(1).Text()),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(accepted) == 0 {
		return nil, fmt.Errorf("invalid list of accepted students")
	}
	return accepted, nil
}
