package dges

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// ErrBadSnapshot is returned when a byte stream is not a valid database
// snapshot: wrong magic, unsupported version, truncated or corrupt
// payload.
var ErrBadSnapshot = errors.New("dges: bad database snapshot")

// BackupSnapshotPath is where SaveCache writes an emergency copy when
// the requested path cannot be written.
const BackupSnapshotPath = "dgesdb.backup"

var snapshotMagic = []byte("DGESDB\x00")

const snapshotVersion = 1

// The wire form is a flattened tree rather than the nested maps, so a
// decoded snapshot structurally cannot contain an orphaned key, and the
// unattempted/empty/populated cell states survive the round trip.
type snapshotCourse struct {
	Course    Course
	Attempted bool
	Students  []StudentEntry
}

type snapshotSchool struct {
	School School
	// false when the school's course list was never scraped.
	CoursesKnown bool
	Courses      []snapshotCourse
}

type snapshotContest struct {
	Contest Contest
	Schools []snapshotSchool
}

type snapshot struct {
	Version  int
	Contests []snapshotContest
}

// Encode writes a snapshot of the database to w.
func (db *Database) Encode(w io.Writer) error {
	var snap snapshot
	snap.Version = snapshotVersion
	for _, contest := range db.sortedContests() {
		sc := snapshotContest{Contest: contest}
		for _, school := range db.sortedSchools(contest) {
			ss := snapshotSchool{School: school}
			db.mu.RLock()
			courses := db.contests[contest][school]
			db.mu.RUnlock()
			if courses != nil {
				ss.CoursesKnown = true
				for _, course := range db.sortedCourses(contest, school) {
					db.mu.RLock()
					c := courses[course]
					db.mu.RUnlock()
					ss.Courses = append(ss.Courses, snapshotCourse{
						Course:    course,
						Attempted: c.attempted,
						Students:  c.students,
					})
				}
			}
			sc.Schools = append(sc.Schools, ss)
		}
		snap.Contests = append(snap.Contests, sc)
	}

	if _, err := w.Write(snapshotMagic); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	zw := lz4.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a database snapshot produced by Encode.
func DecodeSnapshot(r io.Reader) (*Database, error) {
	header := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: missing header: %v", ErrBadSnapshot, err)
	}
	if !bytes.Equal(header, snapshotMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}

	var snap snapshot
	if err := gob.NewDecoder(lz4.NewReader(r)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, snap.Version)
	}

	db := NewDatabase()
	for _, sc := range snap.Contests {
		if sc.Contest.Phase < PhaseFirst || sc.Contest.Phase > PhaseThird {
			return nil, fmt.Errorf("%w: invalid phase %d", ErrBadSnapshot, sc.Contest.Phase)
		}
		if db.Contains(sc.Contest) {
			return nil, fmt.Errorf("%w: duplicate contest %s", ErrBadSnapshot, sc.Contest)
		}
		schools := make(schoolMap, len(sc.Schools))
		for _, ss := range sc.Schools {
			if _, dup := schools[ss.School]; dup {
				return nil, fmt.Errorf("%w: duplicate school %s in %s",
					ErrBadSnapshot, ss.School, sc.Contest)
			}
			if !ss.CoursesKnown {
				if len(ss.Courses) > 0 {
					return nil, fmt.Errorf("%w: courses on unscraped school %s",
						ErrBadSnapshot, ss.School)
				}
				schools[ss.School] = nil
				continue
			}
			courses := make(courseMap, len(ss.Courses))
			for _, co := range ss.Courses {
				if _, dup := courses[co.Course]; dup {
					return nil, fmt.Errorf("%w: duplicate course %s in %s",
						ErrBadSnapshot, co.Course, ss.School)
				}
				if !co.Attempted && len(co.Students) > 0 {
					return nil, fmt.Errorf("%w: students on unattempted course %s",
						ErrBadSnapshot, co.Course)
				}
				students := co.Students
				if co.Attempted && students == nil {
					students = []StudentEntry{}
				}
				courses[co.Course] = cell{attempted: co.Attempted, students: students}
			}
			schools[ss.School] = courses
		}
		db.contests[sc.Contest] = schools
	}
	return db, nil
}

// Save writes a snapshot of the database to a file.
func (db *Database) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := db.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads a database snapshot from a file.
func Load(path string) (*Database, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeSnapshot(file)
}

// LoadCache is Load for resumable scrape runs: an empty path disables
// caching and a nonexistent file yields a fresh empty database. A file
// that exists but fails to decode is still an error, so a corrupt cache
// is never silently discarded.
func LoadCache(path string) (*Database, error) {
	if path == "" {
		return NewDatabase(), nil
	}
	db, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDatabase(), nil
	}
	return db, err
}

// SaveCache is Save for scrape runs: an empty path disables caching,
// and if the requested path cannot be written an emergency copy is
// attempted at BackupSnapshotPath before reporting the failure.
func (db *Database) SaveCache(path string) error {
	if path == "" {
		return nil
	}
	err := db.Save(path)
	if err == nil {
		return nil
	}
	if backupErr := db.Save(BackupSnapshotPath); backupErr != nil {
		return fmt.Errorf("save database to %q: %w (backup to %q also failed: %v)",
			path, err, BackupSnapshotPath, backupErr)
	}
	return fmt.Errorf("save database to %q: %w (backup written to %q)",
		path, err, BackupSnapshotPath)
}
