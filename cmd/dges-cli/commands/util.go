package commands

import (
	"os"
	"slices"

	"dgesscraper/lib/dges"
	"dgesscraper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// filterFlags are the read-time filter options shared by the query
// commands. Empty values mean no restriction.
type filterFlags struct {
	years   *[]int
	schools *[]string
	courses *[]string
}

func registerFilterFlags(cmd *cobra.Command) filterFlags {
	return filterFlags{
		years:   cmd.Flags().IntSlice("years", nil, "Contest years to include (default: all)."),
		schools: cmd.Flags().StringSlice("schools", nil, "School codes to include (default: all)."),
		courses: cmd.Flags().StringSlice("courses", nil, "Course codes to include (default: all)."),
	}
}

func (f filterFlags) filter() dges.Filter {
	var contests []dges.Contest
	if len(*f.years) > 0 {
		contests = dges.UniversalFilter{Years: *f.years}.Contests()
	}
	schools := *f.schools
	courses := *f.courses
	return dges.FuncFilter{
		ContestList: contests,
		School: func(_ dges.Contest, s dges.School) bool {
			return len(schools) == 0 || slices.Contains(schools, s.Code)
		},
		Course: func(_ dges.Contest, _ dges.School, c dges.Course) bool {
			return len(courses) == 0 || slices.Contains(courses, c.Code)
		},
	}
}

func loadDatabase(path string) *dges.Database {
	db, err := dges.Load(path)
	if err != nil {
		serviceutil.Fatal("failed to load database", err)
	}
	return db
}
