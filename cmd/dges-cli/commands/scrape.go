package commands

import (
	"log/slog"
	"sync"
	"time"

	"dgesscraper/lib/dges"
	"dgesscraper/lib/scrapers/dgesweb"
	"dgesscraper/lib/serviceutil"
	"dgesscraper/lib/sitescraper"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scrapeDb *string
var scrapeYears *[]int
var scrapeWorkers *int
var scrapeRetries *int
var scrapeRetryDelay *time.Duration
var scrapePageCache *string
var scrapeDebugHttp *string
var scrapeFilter filterFlags

func init() {
	scrapeDb = scrapeCmd.Flags().String("db", "results.dges", "The database file to write scrape results to.")
	scrapeYears = scrapeCmd.Flags().IntSlice("years", nil, "Contest years to scrape (required).")
	scrapeWorkers = scrapeCmd.Flags().Int("workers", 8, "Number of concurrent page fetches.")
	scrapeRetries = scrapeCmd.Flags().Int("retries", sitescraper.DefaultRetries, "Fetch attempts per page before giving up on it.")
	scrapeRetryDelay = scrapeCmd.Flags().Duration("retry-delay", time.Second*2, "Wait between attempts on the same page.")
	scrapePageCache = scrapeCmd.Flags().String("page-cache", "", "Directory for the raw page cache (disabled when empty).")
	scrapeDebugHttp = scrapeCmd.Flags().String("debug-http", "", "Directory to dump every HTTP exchange to (disabled when empty).")
	scrapeFilter = filterFlags{
		years:   scrapeYears,
		schools: scrapeCmd.Flags().StringSlice("schools", nil, "School codes to scrape (default: all)."),
		courses: scrapeCmd.Flags().StringSlice("courses", nil, "Course codes to scrape (default: all)."),
	}
	scrapeCmd.MarkFlagRequired("years")
	rootCmd.AddCommand(scrapeCmd)
}

// progressRenderer adapts engine progress events to a go-pretty
// progress bar, one tracker per stage.
type progressRenderer struct {
	writer progress.Writer

	mu       sync.Mutex
	trackers map[sitescraper.Stage]*progress.Tracker
}

func newProgressRenderer() *progressRenderer {
	pw := progress.NewWriter()
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(time.Millisecond * 100)
	go pw.Render()
	return &progressRenderer{
		writer:   pw,
		trackers: map[sitescraper.Stage]*progress.Tracker{},
	}
}

func (r *progressRenderer) onEvent(e sitescraper.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.trackers[e.Stage]
	if t == nil {
		t = &progress.Tracker{
			Message: "fetching " + e.Stage.String(),
			Total:   int64(e.Total),
			Units:   progress.UnitsDefault,
		}
		r.trackers[e.Stage] = t
		r.writer.AppendTracker(t)
	}
	t.SetValue(int64(e.Done))
}

func (r *progressRenderer) stop() {
	for _, t := range r.trackers {
		t.MarkAsDone()
	}
	r.writer.Stop()
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape --years <y1,y2,...> [--db <path/to/results.dges>]",
	Short: "Scrapes the placement lists of the given contest years into a database.",
	Run: func(cmd *cobra.Command, args []string) {
		opts := dgesweb.ClientOptions{DebugDump: *scrapeDebugHttp}
		if *scrapePageCache != "" {
			cache, err := dgesweb.OpenCache(*scrapePageCache)
			if err != nil {
				serviceutil.Fatal("failed to open page cache", err)
			}
			defer cache.Close()
			opts.Cache = cache
		}
		client, err := dgesweb.NewClient(opts)
		if err != nil {
			serviceutil.Fatal("failed to initialize client", err)
		}

		renderer := newProgressRenderer()

		t1 := time.Now()
		db, failed, err := sitescraper.Scrape(
			cmd.Context(),
			client,
			scrapeFilter.filter(),
			sitescraper.Options{
				Workers:    *scrapeWorkers,
				Retries:    *scrapeRetries,
				RetryDelay: *scrapeRetryDelay,
				CachePath:  *scrapeDb,
				Progress:   renderer.onEvent,
			},
		)
		renderer.stop()
		if db == nil {
			serviceutil.Fatal("scrape could not start", err)
		}
		if err != nil {
			slog.Warn("scrape ended early", "err", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		var students int
		for range db.Students(nil) {
			students++
		}
		slog.Info("database written", "path", *scrapeDb, "students", students)

		if len(failed) > 0 {
			slog.Warn("some pages could not be retrieved", "count", len(failed))
			t := newTable()
			t.AppendHeader(table.Row{"Stage", "Coordinate", "Attempts", "Error"})
			for _, f := range failed {
				t.AppendRow(table.Row{f.Stage, coordinateCell(f), f.Attempts, f.Err})
			}
			t.Render()
		}
	},
}

func coordinateCell(f sitescraper.FailedCoordinate) string {
	switch f.Stage {
	case sitescraper.StageSchools:
		return f.Contest.String()
	case sitescraper.StageCourses:
		return f.Contest.String() + " / " + f.School.String()
	default:
		ref := dges.CourseRef{Contest: f.Contest, School: f.School, Course: f.Course}
		return ref.String()
	}
}
