package resultsdb

import (
	"context"
	"testing"

	"dgesscraper/lib/dges"
	"dgesscraper/lib/testutil"

	"github.com/stretchr/testify/require"
)

func testDatabase() *dges.Database {
	contest := dges.Contest{Year: 2023, Phase: dges.PhaseFirst}
	school := dges.School{Type: dges.SchoolUniversity, Code: "0300", Name: "Universidade de Aveiro"}
	biologia := dges.Course{Code: "9003", Name: "Biologia"}
	medicina := dges.Course{Code: "9500", Name: "Medicina"}

	db := dges.NewDatabase()
	db.PutSchools(contest, []dges.School{school})
	db.PutCourses(contest, school, []dges.Course{biologia, medicina})
	db.Put(dges.CourseRef{Contest: contest, School: school, Course: biologia}, []dges.StudentEntry{
		{Place: 1, GovID: 12345, Name: "Maria Silva", Option: 1, Grade: 1855, GradeExams: 1790, Grade12: 1900, Grade1011: 1880, Accepted: true},
		{Place: 2, GovID: 67890, Name: "João Santos", Option: 2, Grade: 1710},
	})
	db.Put(dges.CourseRef{Contest: contest, School: school, Course: medicina}, []dges.StudentEntry{
		{Place: 1, GovID: 55511, Name: "Ana Costa", Option: 1, Grade: 1920, Accepted: true},
	})
	return db
}

func TestExport(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "resultsdb",
		DbSchema: Schema,
	})
	defer cleanup()

	count, err := Export(context.Background(), res.DB, testDatabase(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	row := res.DB.QueryRow(`
		SELECT school_name, course_name, grade, accepted
		FROM students WHERE name = ?`, "Maria Silva")
	var schoolName, courseName string
	var grade int
	var accepted bool
	require.NoError(t, row.Scan(&schoolName, &courseName, &grade, &accepted))
	require.Equal(t, "Universidade de Aveiro", schoolName)
	require.Equal(t, "Biologia", courseName)
	require.Equal(t, 1855, grade)
	require.True(t, accepted)

	var total int
	require.NoError(t, res.DB.QueryRow(`SELECT COUNT(*) FROM students`).Scan(&total))
	require.Equal(t, 3, total)
}

func TestExportFiltered(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "resultsdb",
		DbSchema: Schema,
	})
	defer cleanup()

	filter := dges.FuncFilter{
		Course: func(_ dges.Contest, _ dges.School, c dges.Course) bool {
			return c.Code == "9500"
		},
	}
	count, err := Export(context.Background(), res.DB, testDatabase(), filter)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var name string
	require.NoError(t, res.DB.QueryRow(`SELECT name FROM students`).Scan(&name))
	require.Equal(t, "Ana Costa", name)
}

func TestExportEmptyDatabase(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "resultsdb",
		DbSchema: Schema,
	})
	defer cleanup()

	count, err := Export(context.Background(), res.DB, dges.NewDatabase(), nil)
	require.NoError(t, err)
	require.Zero(t, count)
}
