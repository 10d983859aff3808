package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in fsys: timestamped snake_case name, unique
// version, and both goose Up and Down sections with Down after Up. It returns
// the versions in order.
func Validate(fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	versions := make([]string, 0, len(files))
	owner := make(map[string]string, len(files))
	for _, file := range files {
		m := migrationName.FindStringSubmatch(file)
		if m == nil {
			return nil, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", file)
		}
		if prev, dup := owner[m[1]]; dup {
			return nil, fmt.Errorf("%s: version %s already used by %s", file, m[1], prev)
		}
		owner[m[1]] = file

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}
		up := strings.Index(string(body), "-- +goose Up")
		down := strings.Index(string(body), "-- +goose Down")
		switch {
		case up < 0:
			return nil, fmt.Errorf("%s: missing -- +goose Up", file)
		case down < 0:
			return nil, fmt.Errorf("%s: missing -- +goose Down", file)
		case down < up:
			return nil, fmt.Errorf("%s: Down section precedes Up", file)
		}
		versions = append(versions, m[1])
	}
	return versions, nil
}
