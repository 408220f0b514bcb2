//go:build cgo
// +build cgo

package refpanel

import (
	"strings"

	"github.com/carbocation/bgen"
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

// OpenBGI opens a bgenix index through the cgo sqlite driver.
func OpenBGI(path string) (*bgen.BGIIndex, error) {
	bgi := &bgen.BGIIndex{
		Metadata: &bgen.BGIMetadata{},
	}

	// sqlite only honors query parameters such as mode=ro on URI filenames.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	bgi.DB = db

	// Not all index files have metadata
	_ = bgi.DB.Get(bgi.Metadata, "SELECT * FROM Metadata LIMIT 1")

	return bgi, nil
}
