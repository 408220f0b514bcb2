package ldannot

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// ReaderAtCloser is random-access input with a known size, such as a PLINK
// .bed whose rows are fetched on demand.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// GSReaderAt decorates a Google Storage object handle with ReadAt. Each call
// issues one ranged read.
type GSReaderAt struct {
	*storage.ObjectHandle
	Context context.Context
	size    int64
}

// ReadAt satisfies io.ReaderAt, filling all of p unless the object ends first.
func (o *GSReaderAt) ReadAt(p []byte, offset int64) (int, error) {
	rdr, err := o.NewRangeReader(o.Context, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rdr.Close()

	n, err := io.ReadFull(rdr, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	return n, err
}

func (o *GSReaderAt) Size() int64 {
	return o.size
}

// Close is a nop; every ReadAt closes its own range reader.
func (o *GSReaderAt) Close() error {
	return nil
}

type localReaderAt struct {
	*os.File
	size int64
}

func (l localReaderAt) Size() int64 {
	return l.size
}

// OpenReaderAt opens path for random access. Paths beginning with gs:// are
// read from Google Storage through client.
func OpenReaderAt(ctx context.Context, path string, client *storage.Client) (ReaderAtCloser, error) {
	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return nil, pfx.Err(fmt.Errorf("%s: no storage client configured for gs:// input", path))
		}

		bucketName, pathName, err := SplitGSPath(path)
		if err != nil {
			return nil, pfx.Err(err)
		}

		handle := client.Bucket(bucketName).Object(pathName)
		attrs, err := handle.Attrs(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return &GSReaderAt{ObjectHandle: handle, Context: ctx, size: attrs.Size}, nil
	}

	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if err != nil {
		return nil, pfx.Err(err)
	}

	fstat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}

	return localReaderAt{File: f, size: fstat.Size()}, nil
}
