package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// the query commands read a previously scraped database; none of them
// touch the network.

var schoolsDb, coursesDb, studentsDb *string
var schoolsFilter, coursesFilter, studentsFilter filterFlags

func init() {
	schoolsDb = schoolsCmd.Flags().String("db", "results.dges", "The database file to read.")
	schoolsFilter = registerFilterFlags(schoolsCmd)
	coursesDb = coursesCmd.Flags().String("db", "results.dges", "The database file to read.")
	coursesFilter = registerFilterFlags(coursesCmd)
	studentsDb = studentsCmd.Flags().String("db", "results.dges", "The database file to read.")
	studentsFilter = registerFilterFlags(studentsCmd)

	rootCmd.AddCommand(schoolsCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(studentsCmd)
}

var schoolsCmd = &cobra.Command{
	Use:   "schools [--db <path>]",
	Short: "Lists the scraped schools of each contest.",
	Run: func(cmd *cobra.Command, args []string) {
		db := loadDatabase(*schoolsDb)
		t := newTable()
		t.AppendHeader(table.Row{"Contest", "Type", "Code", "Name", "Courses"})
		for contest, school := range db.Schools(schoolsFilter.filter()) {
			t.AppendRow(table.Row{
				contest, school.Type, school.Code, school.Name,
				len(db.CourseList(contest, school)),
			})
		}
		t.Render()
	},
}

var coursesCmd = &cobra.Command{
	Use:   "courses [--db <path>]",
	Short: "Lists the scraped courses and their candidate counts.",
	Run: func(cmd *cobra.Command, args []string) {
		db := loadDatabase(*coursesDb)
		t := newTable()
		t.AppendHeader(table.Row{"Contest", "School", "Code", "Name", "Candidates"})
		for ref, entries := range db.Courses(coursesFilter.filter()) {
			t.AppendRow(table.Row{
				ref.Contest, ref.School.Name, ref.Course.Code, ref.Course.Name,
				len(entries),
			})
		}
		t.Render()
	},
}

var studentsCmd = &cobra.Command{
	Use:   "students [--db <path>]",
	Short: "Lists individual candidate entries.",
	Run: func(cmd *cobra.Command, args []string) {
		db := loadDatabase(*studentsDb)
		t := newTable()
		t.AppendHeader(table.Row{"Contest", "Course", "Place", "Name", "Grade", "Option", "Accepted"})
		for ref, entry := range db.Students(studentsFilter.filter()) {
			t.AppendRow(table.Row{
				ref.Contest,
				fmt.Sprintf("%s / %s", ref.School.Name, ref.Course.Name),
				entry.Place, entry.Name,
				fmt.Sprintf("%.1f", float64(entry.Grade)/10),
				entry.Option, entry.Accepted,
			})
		}
		t.Render()
	},
}
