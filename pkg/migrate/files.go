package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pressly/goose/v3"
)

const versionLayout = "20060102150405"

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <dir>/<version>_<slug>.sql and returns its path. The version is the current
// UTC timestamp, bumped past the newest migration already in dir.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("migration dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migration dir: %w", err)
	}

	latest, err := latestVersion(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	version := time.Now().UTC()
	if versionNumber(version) <= latest {
		prev, err := time.Parse(versionLayout, fmt.Sprint(latest))
		if err != nil {
			return "", fmt.Errorf("latest migration version %d is not a timestamp", latest)
		}
		version = prev.Add(time.Second)
	}

	target := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), slug))
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, sqlTemplate, slug); err != nil {
		return "", fmt.Errorf("write migration: %w", err)
	}
	return target, nil
}

// ValidateDir checks the migrations in dir on disk. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("migration dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks that every .sql file at the root of fsys has a goose
// timestamp version, that no version repeats, and that the Up and Down
// sections exist with balanced statement blocks.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	owners := make(map[int64]string, len(names))
	for _, name := range names {
		version, err := parseVersion(name)
		if err != nil {
			return err
		}
		if prev, dup := owners[version]; dup {
			return fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		owners[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	stem := strings.TrimSuffix(path.Base(name), ".sql")
	stamp, slug, ok := strings.Cut(stem, "_")
	if !ok || slug == "" || slug != slugify(slug) {
		return 0, fmt.Errorf("migration %s: want <version>_<snake_case_name>.sql", name)
	}
	if _, err := time.Parse(versionLayout, stamp); err != nil {
		return 0, fmt.Errorf("migration %s: version %q is not a UTC timestamp", name, stamp)
	}
	version, err := goose.NumericComponent(name)
	if err != nil {
		return 0, fmt.Errorf("migration %s: %w", name, err)
	}
	return version, nil
}

func checkAnnotations(body []byte) error {
	var up, down bool
	open := 0
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		directive, ok := strings.CutPrefix(line, "-- +goose ")
		if !ok {
			continue
		}
		switch strings.Fields(directive)[0] {
		case "Up":
			if down {
				return fmt.Errorf("Up section after Down")
			}
			up = true
		case "Down":
			down = true
		case "StatementBegin":
			if open > 0 {
				return fmt.Errorf("nested StatementBegin")
			}
			open++
		case "StatementEnd":
			if open == 0 {
				return fmt.Errorf("StatementEnd without StatementBegin")
			}
			open--
		}
		if open > 0 && (directive == "Up" || directive == "Down") {
			return fmt.Errorf("section marker inside a statement block")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !up:
		return fmt.Errorf("missing -- +goose Up")
	case !down:
		return fmt.Errorf("missing -- +goose Down")
	case open != 0:
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}

func latestVersion(fsys fs.FS) (int64, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	var latest int64
	for _, name := range names {
		if v, err := goose.NumericComponent(name); err == nil && v > latest {
			latest = v
		}
	}
	return latest, nil
}

func versionNumber(t time.Time) int64 {
	var n int64
	for _, r := range t.Format(versionLayout) {
		n = n*10 + int64(r-'0')
	}
	return n
}

// slugify lower-cases name and collapses every run of other characters into
// a single underscore.
func slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
