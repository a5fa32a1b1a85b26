package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pattern matches {version}_{description}.sql with a numeric version.
var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migration files from a directory of an fs.FS.
type Scanner struct {
	fsys fs.FS
	dir  string
}

// NewScanner creates a Scanner over dir inside fsys.
func NewScanner(fsys fs.FS, dir string) *Scanner {
	return &Scanner{fsys: fsys, dir: dir}
}

// Scan returns every migration ordered by numeric version.
func (s *Scanner) Scan() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, NewMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	versions := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}

		if existing, ok := versions[migration.Version]; ok {
			return nil, NewMigrationError(migration.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s",
					ErrDuplicateVersion, migration.Version, existing, entry.Name()))
		}
		versions[migration.Version] = entry.Name()

		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})

	return migrations, nil
}

func (s *Scanner) parse(name string) (Migration, error) {
	matches := migrationFilePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, NewMigrationError("", name, "validate filename",
			fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'", ErrInvalidMigrationFile, name))
	}

	filePath := path.Join(s.dir, name)
	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, NewMigrationError(matches[1], filePath, "read file", err)
	}
	if len(splitStatements(string(content))) == 0 {
		return Migration{}, NewMigrationError(matches[1], filePath, "validate content",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	return Migration{
		Version:     matches[1],
		Description: strings.ReplaceAll(matches[2], "_", " "),
		SQL:         string(content),
		FilePath:    filePath,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

// splitStatements splits SQL content on semicolons and drops comment-only fragments.
func splitStatements(sql string) []string {
	var statements []string
	for _, stmt := range strings.Split(sql, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
