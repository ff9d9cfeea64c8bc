package dgesweb

import (
	"testing"

	"dgesscraper/lib/dges"

	"github.com/stretchr/testify/require"
)

// the site serves sloppy markup (unclosed tags, stray whitespace inside
// names); the fixtures reproduce that

const schoolListPage = `
<html><body><form>
<select name="CodEstab">
<option value="0300">0300 - Universidade
	de Aveiro
<option value="0400">0400 - Universidade do Algarve
</select>
</form></body></html>`

const courseListPage = `
<html><body><form>
<select name="CodCurso">
<option value="9003">9003 - Biologia
<option value="9500">9500 - Medicina
</select>
</form></body></html>`

const candidateListPage = `
<html><body>
<div class="caixa">ignored navigation box</div>
<div class="caixa"><table><tbody>
<tr><td>1</td><td>123(...)45</td><td>Maria
	Silva</td><td>185,5</td><td>1</td><td>179,0</td><td>190</td><td>188</td></tr>
<tr><td>2</td><td>678(...)90</td><td>João Santos</td><td>171,0</td><td>3</td><td>165,5</td><td>175</td><td>172</td></tr>
</tbody></table></div>
</body></html>`

const acceptedListPage = `
<html><body>
<div class="caixa"><table><tbody>
<tr><td>123(...)45</td><td>Maria Silva</td></tr>
</tbody></table></div>
</body></html>`

const noCandidatesPage = `
<html><body>
<div class="caixa"><table><tbody>
<tr><td>Este curso não teve candidatos em nenhuma fase</td></tr>
</tbody></table></div>
</body></html>`

const noPlacedPage = `
<html><body>
<div class="caixa"><table><tbody>
<tr><td>Este curso não teve colocados</td></tr>
</tbody></table></div>
</body></html>`

const rateLimitedPage = `
<html><body>Excedeu o número de pedidos permitido.</body></html>`

func TestParseSchoolList(t *testing.T) {
	schools, err := ParseSchoolList(schoolListPage, dges.SchoolUniversity)
	require.NoError(t, err)
	require.Equal(t, []dges.School{
		{Type: dges.SchoolUniversity, Code: "0300", Name: "Universidade de Aveiro"},
		{Type: dges.SchoolUniversity, Code: "0400", Name: "Universidade do Algarve"},
	}, schools)
}

func TestParseCourseList(t *testing.T) {
	courses, err := ParseCourseList(courseListPage)
	require.NoError(t, err)
	require.Equal(t, []dges.Course{
		{Code: "9003", Name: "Biologia"},
		{Code: "9500", Name: "Medicina"},
	}, courses)
}

func TestParseOptionListRejectsEmptyPage(t *testing.T) {
	_, err := ParseCourseList("<html><body>no options here</body></html>")
	require.Error(t, err)
}

func TestParseCandidateList(t *testing.T) {
	accepted, err := ParseAcceptedList(acceptedListPage)
	require.NoError(t, err)
	require.Equal(t, []AcceptedStudent{{GovID: 12345, Name: "Maria Silva"}}, accepted)

	entries, err := ParseCandidateList(candidateListPage, accepted)
	require.NoError(t, err)
	require.Equal(t, []dges.StudentEntry{
		{
			Place: 1, GovID: 12345, Name: "Maria Silva", Option: 1,
			Grade: 1855, GradeExams: 1790, Grade12: 1900, Grade1011: 1880,
			Accepted: true,
		},
		{
			Place: 2, GovID: 67890, Name: "João Santos", Option: 3,
			Grade: 1710, GradeExams: 1655, Grade12: 1750, Grade1011: 1720,
		},
	}, entries)
}

func TestParseCandidateListEmpty(t *testing.T) {
	entries, err := ParseCandidateList(noCandidatesPage, nil)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestParseAcceptedListEmpty(t *testing.T) {
	accepted, err := ParseAcceptedList(noPlacedPage)
	require.NoError(t, err)
	require.Empty(t, accepted)
}

func TestParseDetectsRateLimit(t *testing.T) {
	_, err := ParseCandidateList(rateLimitedPage, nil)
	require.ErrorIs(t, err, ErrTooManyRequests)

	_, err = ParseSchoolList(rateLimitedPage, dges.SchoolUniversity)
	require.ErrorIs(t, err, ErrTooManyRequests)
}

func TestParseCandidateListRejectsMalformedRow(t *testing.T) {
	page := `
<html><body>
<div class="caixa"><table><tbody>
<tr><td>1</td><td>123(...)45</td><td>Maria Silva</td></tr>
</tbody></table></div>
</body></html>`
	_, err := ParseCandidateList(page, nil)
	require.Error(t, err)
}

func TestParseGovID(t *testing.T) {
	id, err := parseGovID("123(...)45")
	require.NoError(t, err)
	require.Equal(t, 12345, id)

	_, err = parseGovID("1234567890")
	require.Error(t, err)
}

func TestParseGrades(t *testing.T) {
	g, err := parseDecimalGrade("185,5")
	require.NoError(t, err)
	require.Equal(t, 1855, g)

	g, err = parseIntegerGrade("190")
	require.NoError(t, err)
	require.Equal(t, 1900, g)

	_, err = parseDecimalGrade("abc")
	require.Error(t, err)
}
