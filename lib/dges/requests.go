package dges

import (
	"fmt"
	"net/url"
)

// Request construction for the DGES website. Pure string building, no
// I/O: the HTTP client in lib/scrapers/dgesweb turns these into actual
// requests.

// PageRequest describes one page fetch. Form is nil for plain GETs.
type PageRequest struct {
	URL  string
	Form url.Values
}

const baseURL = "https://www.dges.gov.pt/coloc"

// SchoolListRequest addresses the page listing all schools of one type
// taking part in a contest.
func SchoolListRequest(contest Contest, schoolType SchoolType) PageRequest {
	return PageRequest{
		URL: fmt.Sprintf("%s/%d/col%dlistas.asp?CodR=%s&action=2",
			baseURL, contest.Year, int(contest.Phase), schoolType.ServerCode()),
	}
}

// CourseListRequest addresses the page listing the courses a school
// provided during a contest.
func CourseListRequest(contest Contest, school School) PageRequest {
	return PageRequest{
		URL: fmt.Sprintf("%s/%d/col%dlistaredir.asp",
			baseURL, contest.Year, int(contest.Phase)),
		Form: url.Values{
			"CodEstab": {school.Code},
			"CodR":     {school.Type.ServerCode()},
			// "ordered list of candidates"
			"listagem": {"Lista+Ordenada+de+Candidatos"},
		},
	}
}

// CandidateListRequest addresses the page listing all candidates to a
// course. The fixed ids/ide/Mx pagination parameters request the whole
// list on a single page.
func CandidateListRequest(ref CourseRef) PageRequest {
	return PageRequest{
		URL: fmt.Sprintf("%s/%d/col%dlistaser.asp?CodEstab=%s&CodCurso=%s&ids=1&ide=9999&Mx=0",
			baseURL, ref.Contest.Year, int(ref.Contest.Phase),
			ref.School.Code, ref.Course.Code),
	}
}

// AcceptedListRequest addresses the page listing the students placed in
// a course.
func AcceptedListRequest(ref CourseRef) PageRequest {
	return PageRequest{
		URL: fmt.Sprintf("%s/%d/col%dlistacol.asp",
			baseURL, ref.Contest.Year, int(ref.Contest.Phase)),
		Form: url.Values{
			"CodCurso": {ref.Course.Code},
			"CodEstab": {ref.School.Code},
			"CodR":     {ref.School.Type.ServerCode()},
			"search":   {"Continuar"},
		},
	}
}
