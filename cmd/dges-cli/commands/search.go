package commands

import (
	"fmt"
	"slices"
	"strings"

	"dgesscraper/lib/dges"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var searchDb *string
var searchLimit *int

func init() {
	searchDb = searchCmd.Flags().String("db", "results.dges", "The database file to read.")
	searchLimit = searchCmd.Flags().Int("limit", 15, "Maximum number of matches to show.")
	rootCmd.AddCommand(searchCmd)
}

type searchMatch struct {
	kind       string
	contest    dges.Contest
	name       string
	code       string
	similarity float64
}

// score combines exact-substring and JaroWinkler similarity, so both
// "aveiro" and misspelled "avero" find the university.
func score(query, name string) float64 {
	lowered := strings.ToLower(name)
	if strings.Contains(lowered, query) {
		return 1
	}
	return matchr.JaroWinkler(query, lowered, false)
}

var searchCmd = &cobra.Command{
	Use:   "search <query> [--db <path>]",
	Short: "Fuzzy-searches school and course names in a scraped database.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := strings.ToLower(args[0])
		db := loadDatabase(*searchDb)

		var matches []searchMatch
		for contest, school := range db.Schools(nil) {
			matches = append(matches, searchMatch{
				kind:       "school",
				contest:    contest,
				name:       school.Name,
				code:       school.Code,
				similarity: score(query, school.Name),
			})
			for _, course := range db.CourseList(contest, school) {
				matches = append(matches, searchMatch{
					kind:       "course",
					contest:    contest,
					name:       fmt.Sprintf("%s (%s)", course.Name, school.Name),
					code:       course.Code,
					similarity: score(query, course.Name),
				})
			}
		}

		slices.SortStableFunc(matches, func(a, b searchMatch) int {
			switch {
			case a.similarity > b.similarity:
				return -1
			case a.similarity < b.similarity:
				return 1
			}
			return 0
		})
		if len(matches) > *searchLimit {
			matches = matches[:*searchLimit]
		}

		t := newTable()
		t.AppendHeader(table.Row{"Kind", "Contest", "Code", "Name", "Match"})
		for _, m := range matches {
			t.AppendRow(table.Row{
				m.kind, m.contest, m.code, m.name,
				fmt.Sprintf("%.0f%%", m.similarity*100),
			})
		}
		t.Render()
	},
}
