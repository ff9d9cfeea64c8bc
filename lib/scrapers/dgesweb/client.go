// Package dgesweb fetches and parses pages of the DGES placement
// website. It is the network boundary of the scraper: everything above
// it only sees typed records or errors.
package dgesweb

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"dgesscraper/lib/dges"
	"dgesscraper/lib/restyutil"
	"dgesscraper/lib/telemetry"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/dgesweb")

type Client struct {
	http  *resty.Client
	cache *pageCache
}

type ClientOptions struct {
	// Optional on-disk page cache. When nil, every fetch goes to the
	// network.
	Cache *badger.DB
	// Lifetime of cached pages; zero means DefaultCacheLifetime.
	CacheLifetime time.Duration
	// DebugDump, when set, is a directory every HTTP exchange is
	// written to as a numbered transcript file.
	DebugDump string
}

// Pages rarely change within a contest season, but placement results
// are republished between phases.
const DefaultCacheLifetime = time.Hour * 24 * 7

func NewClient(opts ClientOptions) (*Client, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/dgesweb/http")
	if opts.DebugDump != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DebugDump)
		if err != nil {
			return nil, err
		}
		restyutil.InstrumentClient(client, output)
	}

	c := &Client{http: client}
	if opts.Cache != nil {
		lifetime := opts.CacheLifetime
		if lifetime == 0 {
			lifetime = DefaultCacheLifetime
		}
		c.cache = &pageCache{db: opts.Cache, lifetime: lifetime}
	}
	return c, nil
}

// fetchPage performs one page request, consulting and filling the page
// cache. Rate-limit responses are reported before caching so a backoff
// page never masks real content on a retry.
func (c *Client) fetchPage(ctx context.Context, req dges.PageRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "fetchPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", req.URL))

	if c.cache != nil {
		page, err := c.cache.get(ctx, req)
		if err == nil {
			span.SetStatus(codes.Ok, "CACHE HIT")
			return page, nil
		}
	}

	r := c.http.R().SetContext(ctx)
	var res *resty.Response
	var err error
	if req.Form == nil {
		res, err = r.Get(req.URL)
	} else {
		res, err = r.SetFormDataFromValues(req.Form).Post(req.URL)
	}
	if err != nil {
		return "", err
	}

	switch {
	case res.StatusCode() == 404:
		return "", fmt.Errorf("%s: %w", req.URL, dges.ErrPageNotFound)
	case res.StatusCode() != 200:
		return "", fmt.Errorf("%s: unexpected status %d", req.URL, res.StatusCode())
	}

	html := string(res.Body())
	if err := detectTooManyRequests(html); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.set(ctx, req, html); err != nil {
			span.RecordError(err)
		}
	}
	return html, nil
}

// FetchSchools returns every school taking part in a contest,
// universities and polytechnical schools merged, the way callers want
// to see them. A missing page for either type means the contest itself
// is not published, reported as dges.ErrPageNotFound.
func (c *Client) FetchSchools(ctx context.Context, contest dges.Contest) ([]dges.School, error) {
	ctx, span := tracer.Start(ctx, "client:FetchSchools")
	defer span.End()
	span.SetAttributes(attribute.String("contest", contest.String()))

	var schools []dges.School
	for _, schoolType := range dges.AllSchoolTypes {
		html, err := c.fetchPage(ctx, dges.SchoolListRequest(contest, schoolType))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch school list")
			return nil, err
		}
		parsed, err := ParseSchoolList(html, schoolType)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse school list")
			return nil, err
		}
		schools = append(schools, parsed...)
	}
	return schools, nil
}

// FetchCourses returns the courses a school provided during a contest.
func (c *Client) FetchCourses(ctx context.Context, contest dges.Contest, school dges.School) ([]dges.Course, error) {
	ctx, span := tracer.Start(ctx, "client:FetchCourses")
	defer span.End()
	span.SetAttributes(
		attribute.String("contest", contest.String()),
		attribute.String("school", school.Code),
	)

	html, err := c.fetchPage(ctx, dges.CourseListRequest(contest, school))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch course list")
		return nil, err
	}
	courses, err := ParseCourseList(html)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse course list")
		return nil, err
	}
	return courses, nil
}

// FetchStudents returns the candidate list of a course, with Accepted
// set from the course's placement page.
func (c *Client) FetchStudents(ctx context.Context, ref dges.CourseRef) ([]dges.StudentEntry, error) {
	ctx, span := tracer.Start(ctx, "client:FetchStudents")
	defer span.End()
	span.SetAttributes(attribute.String("course", ref.String()))

	acceptedHTML, err := c.fetchPage(ctx, dges.AcceptedListRequest(ref))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch accepted list")
		return nil, err
	}
	accepted, err := ParseAcceptedList(acceptedHTML)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse accepted list")
		return nil, err
	}

	candidatesHTML, err := c.fetchPage(ctx, dges.CandidateListRequest(ref))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch candidate list")
		return nil, err
	}
	entries, err := ParseCandidateList(candidatesHTML, accepted)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse candidate list")
		return nil, err
	}
	return entries, nil
}

var _ interface {
	FetchSchools(context.Context, dges.Contest) ([]dges.School, error)
	FetchCourses(context.Context, dges.Contest, dges.School) ([]dges.Course, error)
	FetchStudents(context.Context, dges.CourseRef) ([]dges.StudentEntry, error)
} = (*Client)(nil)

// OpenCache opens (or creates) a badger page cache at dir.
func OpenCache(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return badger.Open(opts)
}
