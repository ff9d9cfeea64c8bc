// Package resultsdb flattens a scraped database into a sqlite file,
// one row per candidate entry, for ad-hoc querying with plain SQL.
package resultsdb

import (
	"context"
	"database/sql"
	"fmt"

	"dgesscraper/lib/dges"
)

const Schema = `
CREATE TABLE students (
    contest_year  INTEGER NOT NULL,
    contest_phase INTEGER NOT NULL,
    school_type   TEXT NOT NULL,
    school_code   TEXT NOT NULL,
    school_name   TEXT NOT NULL,
    course_code   TEXT NOT NULL,
    course_name   TEXT NOT NULL,
    place         INTEGER NOT NULL,
    gov_id        INTEGER NOT NULL,
    name          TEXT NOT NULL,
    option        INTEGER NOT NULL,
    grade         INTEGER NOT NULL,
    grade_exams   INTEGER NOT NULL,
    grade_12      INTEGER NOT NULL,
    grade_10_11   INTEGER NOT NULL,
    accepted      INTEGER NOT NULL
);
CREATE INDEX students_by_course ON students (contest_year, contest_phase, school_code, course_code);
CREATE INDEX students_by_name ON students (name);
`

// Export writes every candidate entry accepted by the filter into out.
// A nil filter exports everything.
func Export(ctx context.Context, out *sql.DB, db *dges.Database, filter dges.Filter) (int, error) {
	tx, err := out.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO students (
			contest_year, contest_phase, school_type, school_code, school_name,
			course_code, course_name, place, gov_id, name, option,
			grade, grade_exams, grade_12, grade_10_11, accepted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for ref, entry := range db.Students(filter) {
		_, err := stmt.ExecContext(ctx,
			ref.Contest.Year, int(ref.Contest.Phase),
			ref.School.Type.String(), ref.School.Code, ref.School.Name,
			ref.Course.Code, ref.Course.Name,
			entry.Place, entry.GovID, entry.Name, entry.Option,
			entry.Grade, entry.GradeExams, entry.Grade12, entry.Grade1011,
			entry.Accepted,
		)
		if err != nil {
			return 0, fmt.Errorf("insert student %q of %s: %w", entry.Name, ref, err)
		}
		count++
	}

	return count, tx.Commit()
}
