// Package restyutil dumps the raw HTTP exchanges of a resty client to
// a directory, one numbered file per request/response pair. Useful when
// a parser starts failing and the server's markup needs inspecting.
package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// FilesystemOutput writes one file per message into a directory,
// clearing it first.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".http"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write http transcript", "id", id, "err", err)
	}
}

// InstrumentClient records every completed exchange of `client` into
// `output`. A nil output makes this a no-op. Tracing is not touched
// here; transcripts complement spans rather than replace them.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatHttpMessage(res))
		slog.DebugContext(res.Request.Context(), "recorded http transcript",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"id", id,
		)
		return nil
	})
}
