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

// SplitGSPath splits gs://bucket/path/to/object into its bucket and object
// names.
func SplitGSPath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// OpenRaw opens path for streaming without decompression. Paths beginning with
// gs:// are read from Google Storage through client; everything else is local.
func OpenRaw(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return nil, pfx.Err(fmt.Errorf("%s: no storage client configured for gs:// input", path))
		}

		bucketName, pathName, err := SplitGSPath(path)
		if err != nil {
			return nil, pfx.Err(err)
		}

		rdr, err := client.Bucket(bucketName).Object(pathName).NewReader(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return rdr, nil
	}

	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}

// Open opens path (local, ~/ or gs://) and transparently decompresses it.
func Open(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	raw, err := OpenRaw(ctx, path, client)
	if err != nil {
		return nil, err
	}

	return MaybeDecompressReadCloser(raw)
}

// Exists reports whether a local or gs:// path can be found.
func Exists(ctx context.Context, path string, client *storage.Client) bool {
	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return false
		}
		bucketName, pathName, err := SplitGSPath(path)
		if err != nil {
			return false
		}
		_, err = client.Bucket(bucketName).Object(pathName).Attrs(ctx)
		return err == nil
	}

	expanded, err := ExpandHome(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(expanded)
	return err == nil
}
