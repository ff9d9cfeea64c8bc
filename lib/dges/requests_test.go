package dges

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestShapes(t *testing.T) {
	req := SchoolListRequest(testContest, SchoolPolytechnic)
	require.Equal(t, "https://www.dges.gov.pt/coloc/2022/col1listas.asp?CodR=12&action=2", req.URL)
	require.Nil(t, req.Form)

	req = CourseListRequest(testContest, testSchool)
	require.Equal(t, "https://www.dges.gov.pt/coloc/2022/col1listaredir.asp", req.URL)
	require.Equal(t, "0300", req.Form.Get("CodEstab"))
	require.Equal(t, "11", req.Form.Get("CodR"))

	req = CandidateListRequest(testRef)
	require.Equal(t, "https://www.dges.gov.pt/coloc/2022/col1listaser.asp?CodEstab=0300&CodCurso=9003&ids=1&ide=9999&Mx=0", req.URL)

	req = AcceptedListRequest(CourseRef{
		Contest: Contest{Year: 2021, Phase: PhaseThird},
		School:  testSchool,
		Course:  testCourse,
	})
	require.Equal(t, "https://www.dges.gov.pt/coloc/2021/col3listacol.asp", req.URL)
	require.Equal(t, "9003", req.Form.Get("CodCurso"))
}
