package dges

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	db := populated(t)
	// every cell state must survive: unattempted ("9500"), empty and
	// populated
	db.Put(CourseRef{Contest: testContest, School: testSchool, Course: Course{Code: "9500", Name: "Medicina"}}, nil)
	db.Put(testRef, testStudents)

	var buf bytes.Buffer
	require.NoError(t, db.Encode(&buf))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	require.True(t, db.Equal(decoded))
}

func TestSnapshotEmptyDatabase(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDatabase().Encode(&buf))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	require.True(t, NewDatabase().Equal(decoded))
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot(bytes.NewReader([]byte("certainly not a snapshot")))
	require.ErrorIs(t, err, ErrBadSnapshot)

	_, err = DecodeSnapshot(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrBadSnapshot)
}

func TestSnapshotRejectsTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, populated(t).Encode(&buf))

	truncated := buf.Bytes()[:buf.Len()/2]
	_, err := DecodeSnapshot(bytes.NewReader(truncated))
	require.ErrorIs(t, err, ErrBadSnapshot)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.dges")
	db := populated(t)
	require.NoError(t, db.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, db.Equal(loaded))
}

func TestLoadCache(t *testing.T) {
	// empty path and missing file both give a fresh database
	db, err := LoadCache("")
	require.NoError(t, err)
	require.True(t, db.Equal(NewDatabase()))

	db, err = LoadCache(filepath.Join(t.TempDir(), "nope.dges"))
	require.NoError(t, err)
	require.True(t, db.Equal(NewDatabase()))

	// a corrupt cache is an error, not silently discarded
	path := filepath.Join(t.TempDir(), "corrupt.dges")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	_, err = LoadCache(path)
	require.ErrorIs(t, err, ErrBadSnapshot)
}

func TestSaveCacheNoop(t *testing.T) {
	require.NoError(t, populated(t).SaveCache(""))
}
