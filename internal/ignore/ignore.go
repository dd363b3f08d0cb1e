// Package ignore implements .scoutignore matching: gitignore-syntax
// patterns collected from every directory at or above a candidate path,
// combined so that patterns from deeper directories override shallower
// ones, including negations.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName is the pattern file's fixed name.
const FileName = ".scoutignore"

// level is one directory's pattern lines, already rewritten (scoped) so
// they can be concatenated with every other level's lines and compiled
// into a single matcher without losing their original directory scope.
type level struct {
	dir   string
	lines []string
}

// Matcher answers ignore queries for a scan rooted at Root by loading every
// .scoutignore file between Root and a candidate path's directory. A single
// combined matcher is compiled per queried directory from all applicable
// levels in root-to-leaf order, so a pattern from a deeper .scoutignore —
// including a bare negation with no matching pattern of its own — is
// evaluated after, and so overrides, anything a shallower file says about
// the same path.
type Matcher struct {
	root     string
	levels   map[string]*level
	combined map[string]*gitignore.GitIgnore
}

// New creates a Matcher rooted at root. Pattern files are loaded lazily as
// directories are queried.
func New(root string) *Matcher {
	return &Matcher{
		root:     root,
		levels:   make(map[string]*level),
		combined: make(map[string]*gitignore.GitIgnore),
	}
}

func (m *Matcher) levelFor(dir string) (*level, error) {
	if lv, ok := m.levels[dir]; ok {
		return lv, nil
	}
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		lv := &level{dir: dir}
		m.levels[dir] = lv
		return lv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ignore: read %s: %w", path, err)
	}

	prefix, err := filepath.Rel(m.root, dir)
	if err != nil || prefix == "." {
		prefix = ""
	}
	prefix = filepath.ToSlash(prefix)

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, scopePatternLines(prefix, trimmed)...)
	}
	lv := &level{dir: dir, lines: lines}
	m.levels[dir] = lv
	return lv, nil
}

// scopePatternLines rewrites a raw pattern line from a .scoutignore file at
// prefix (that file's directory, relative to the matcher root, "" for the
// root itself) so the pattern keeps applying only within that subtree once
// concatenated into a matcher compiled against root-relative paths.
//
// A pattern anchored with a leading slash, or already containing an
// internal slash, is anchored to prefix directly. A bare pattern (no
// slash, matching at any depth under its own directory per gitignore
// semantics) is expanded into both a direct-child and a "**"-nested form,
// since the combined matcher only ever sees root-relative paths.
func scopePatternLines(prefix, pattern string) []string {
	if prefix == "" {
		return []string{pattern}
	}

	negate := strings.HasPrefix(pattern, "!")
	body := pattern
	if negate {
		body = body[1:]
	}
	anchored := strings.HasPrefix(body, "/")
	body = strings.TrimPrefix(body, "/")
	trailingSlash := strings.HasSuffix(body, "/")
	trimmed := strings.TrimSuffix(body, "/")

	mark := func(s string) string {
		if negate {
			return "!" + s
		}
		return s
	}

	if anchored || strings.Contains(trimmed, "/") {
		return []string{mark(prefix + "/" + body)}
	}

	direct := prefix + "/" + body
	deep := prefix + "/**/" + body
	if trailingSlash {
		if !strings.HasSuffix(direct, "/") {
			direct += "/"
		}
		if !strings.HasSuffix(deep, "/") {
			deep += "/"
		}
	}
	return []string{mark(direct), mark(deep)}
}

// dirsFromRootTo returns the chain of directories from m.root down to dir
// (inclusive), root-first.
func (m *Matcher) dirsFromRootTo(dir string) []string {
	rel, err := filepath.Rel(m.root, dir)
	if err != nil || rel == "." {
		return []string{m.root}
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	dirs := make([]string, 0, len(parts)+1)
	cur := m.root
	dirs = append(dirs, cur)
	for _, p := range parts {
		cur = filepath.Join(cur, p)
		dirs = append(dirs, cur)
	}
	return dirs
}

// matcherFor returns the combined matcher for every .scoutignore file from
// root down to dir, compiled once and cached per directory.
func (m *Matcher) matcherFor(dir string) (*gitignore.GitIgnore, error) {
	if gi, ok := m.combined[dir]; ok {
		return gi, nil
	}

	var lines []string
	for _, d := range m.dirsFromRootTo(dir) {
		lv, err := m.levelFor(d)
		if err != nil {
			return nil, err
		}
		lines = append(lines, lv.lines...)
	}

	var gi *gitignore.GitIgnore
	if len(lines) > 0 {
		gi = gitignore.CompileIgnoreLines(lines...)
	}
	m.combined[dir] = gi
	return gi, nil
}

// Match reports whether path (a file inside m.root) is ignored.
func (m *Matcher) Match(path string) (bool, error) {
	dir := filepath.Dir(path)
	matcher, err := m.matcherFor(dir)
	if err != nil {
		return false, err
	}
	if matcher == nil {
		return false, nil
	}

	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false, err
	}
	return matcher.MatchesPath(filepath.ToSlash(rel)), nil
}
