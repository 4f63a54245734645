package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern  = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|pragma)\b`)
	uuidMarkerPattern  = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
	pgPlaceholderRegex = regexp.MustCompile(`\$[0-9]+`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

// statement is one SQL constant found in a Go file.
type statement struct {
	file   string
	name   string
	line   int
	marker string
	body   string
}

func main() {
	flag.Parse()
	os.Exit(run(flag.Args(), os.Stderr))
}

func run(targets []string, stderr io.Writer) int {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	violations, err := lint(targets)
	if err != nil {
		fmt.Fprintf(stderr, "sqllint: %v\n", err)
		return 1
	}
	if len(violations) > 0 {
		fmt.Fprintln(stderr, "sqllint: SQL audit violations")
		for _, v := range violations {
			fmt.Fprintf(stderr, "  %s\n", v)
		}
		return 1
	}
	return 0
}

func lint(targets []string) ([]violation, error) {
	var stmts []statement
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				found, err := scanFile(target)
				if err != nil {
					return nil, err
				}
				stmts = append(stmts, found...)
			}
			continue
		}
		walkErr := filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			found, err := scanFile(path)
			if err != nil {
				return err
			}
			stmts = append(stmts, found...)
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return check(stmts), nil
}

// check reports missing markers, markers shared by two statements, and Postgres placeholders.
func check(stmts []statement) []violation {
	var violations []violation
	seen := make(map[string]statement, len(stmts))
	for _, s := range stmts {
		if s.marker == "" {
			violations = append(violations, s.violation("missing or invalid --sql <uuid> marker"))
			continue
		}
		if prev, dup := seen[s.marker]; dup {
			violations = append(violations, s.violation(fmt.Sprintf("marker %s already used by %s", s.marker, prev.name)))
		} else {
			seen[s.marker] = s
		}
		if pgPlaceholderRegex.MatchString(s.body) {
			violations = append(violations, s.violation("uses $N placeholders; SQLite statements take ?"))
		}
	}
	sort.SliceStable(violations, func(i, k int) bool {
		if violations[i].file != violations[k].file {
			return violations[i].file < violations[k].file
		}
		return violations[i].line < violations[k].line
	})
	return violations
}

func (s statement) violation(msg string) violation {
	return violation{file: s.file, name: s.name, line: s.line, message: msg}
}

func scanFile(path string) ([]statement, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var stmts []statement
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			s := statement{
				file: path,
				name: joinNames(vs.Names),
				line: fset.Position(bl.Pos()).Line,
				body: raw,
			}
			if m := uuidMarkerPattern.FindStringSubmatch(firstLine(raw)); m != nil {
				s.marker = m[1]
			}
			stmts = append(stmts, s)
		}
		return true
	})
	return stmts, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
