package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks the migration files of a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(Migrations, embeddedDir)
}

// ValidateFS checks filenames, version uniqueness and goose annotations of
// the SQL files under dir. Up must precede Down and every StatementBegin
// needs its StatementEnd, otherwise goose stops halfway through a file.
func ValidateFS(fsys fs.FS, dir string) error {
	names, err := migrationNames(fsys, dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}

	seen := map[string]string{}
	for _, name := range names {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := checkAnnotations(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func migrationNames(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func checkAnnotations(txt string) error {
	up := strings.Index(txt, annotationUp)
	down := strings.Index(txt, annotationDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", annotationUp)
	case down < 0:
		return fmt.Errorf("missing %q", annotationDown)
	case down < up:
		return fmt.Errorf("%q must come before %q", annotationUp, annotationDown)
	}

	open := 0
	for _, line := range strings.Split(txt, "\n") {
		switch strings.TrimSpace(line) {
		case annotationBegin:
			if open > 0 {
				return fmt.Errorf("nested %q", annotationBegin)
			}
			open++
		case annotationEnd:
			if open == 0 {
				return fmt.Errorf("%q without %q", annotationEnd, annotationBegin)
			}
			open--
		}
	}
	if open != 0 {
		return fmt.Errorf("unterminated %q", annotationBegin)
	}
	return nil
}

// latestVersion returns the highest version among the files in dir, or "".
func latestVersion(dir string) (string, error) {
	names, err := migrationNames(os.DirFS(dir), ".")
	if err != nil {
		return "", err
	}
	latest := ""
	for _, name := range names {
		if m := sqlFileRe.FindStringSubmatch(name); m != nil && m[1] > latest {
			latest = m[1]
		}
	}
	return latest, nil
}
