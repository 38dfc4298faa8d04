// Command testreport merges `go test -json` output with the annotations in
// test doc comments (TestPurpose, Scope, Security, Expected, Test Case ID)
// into JSON and Markdown reports.
//
//	go test -json ./... > test.json
//	go run ./scripts/testreport --input test.json --out-json report.json --out-md report.md
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/timothyfroehlich/PinPoint-sub001"

// Annotation holds the metadata parsed from a test's doc comment.
type Annotation struct {
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Category   string `json:"category"`
}

// Result is the merged outcome of one test.
type Result struct {
	Name        string     `json:"name"`
	Package     string     `json:"package"`
	Status      string     `json:"status"`
	Elapsed     float64    `json:"elapsed_seconds"`
	Failure     string     `json:"failure_reason,omitempty"`
	Annotations Annotation `json:"annotations"`
}

// Summary is the top level of the JSON report.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

var opts struct {
	input   string
	outJSON string
	outMD   string
	title   string
	root    string
}

var rootCmd = &cobra.Command{
	Use:          "testreport",
	Short:        "Build annotated test reports from go test -json output",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		annotations, err := scanAnnotations(opts.root)
		if err != nil {
			return err
		}
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer f.Close()

		summary := summarize(parseEvents(f, annotations))
		if err := writeFile(opts.outJSON, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}); err != nil {
			return err
		}
		if opts.outMD != "" {
			if err := writeFile(opts.outMD, func(w io.Writer) error {
				_, err := io.WriteString(w, markdown(summary, opts.title))
				return err
			}); err != nil {
				return err
			}
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d tests failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.input, "input", "", "go test -json output")
	f.StringVar(&opts.outJSON, "out-json", "", "JSON report path")
	f.StringVar(&opts.outMD, "out-md", "", "Markdown report path")
	f.StringVar(&opts.title, "title", "Test Report", "report title")
	f.StringVar(&opts.root, "root", ".", "module root to scan for annotations")
	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("out-json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scanAnnotations parses every _test.go file under root and returns the
// annotations of its Test functions keyed by "importpath.TestName".
func scanAnnotations(root string) (map[string]Annotation, error) {
	out := make(map[string]Annotation)
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && (strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" || d.Name() == ".git") {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, filepath.Dir(path))
		pkg := importPath(rel)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			a := parseDoc(fn.Doc)
			a.Category = category(pkg)
			out[pkg+"."+fn.Name.Name] = a
		}
		return nil
	})
	return out, err
}

func importPath(rel string) string {
	if rel == "." || rel == "" {
		return modulePath
	}
	return modulePath + "/" + filepath.ToSlash(rel)
}

func parseDoc(doc *ast.CommentGroup) Annotation {
	var a Annotation
	if doc == nil {
		return a
	}
	fields := map[string]*string{
		"TestPurpose:":  &a.Purpose,
		"Scope:":        &a.Scope,
		"Security:":     &a.Security,
		"Expected:":     &a.Expected,
		"Test Case ID:": &a.TestCaseID,
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		for prefix, dst := range fields {
			if strings.HasPrefix(text, prefix) {
				*dst = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			}
		}
	}
	return a
}

var categories = []struct{ dir, name string }{
	{"internal/rbac", "Catalog"},
	{"internal/organization", "Resolver"},
	{"internal/authz", "Gate"},
	{"internal/isolation", "Isolation"},
	{"internal/store", "Store"},
	{"internal/issue", "Issues"},
	{"internal/identity", "AuthN"},
	{"internal/session", "AuthN"},
	{"internal/audit", "Audit"},
	{"internal/transport/http", "HTTP API"},
	{"internal/transport/grpc", "gRPC API"},
}

func category(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath+"/")
	for _, c := range categories {
		if strings.HasPrefix(rel, c.dir) {
			return c.name
		}
	}
	return "Other"
}

// parseEvents folds test events into one result per test. Annotated tests
// that never ran are reported as "not run"; subtests inherit the
// annotations of their parent.
func parseEvents(r io.Reader, annotations map[string]Annotation) []Result {
	results := make(map[string]*Result)
	for key, a := range annotations {
		i := strings.LastIndex(key, ".")
		results[key] = &Result{Name: key[i+1:], Package: key[:i], Status: "not run", Annotations: a}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev testEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}
		key := ev.Package + "." + ev.Test
		res, ok := results[key]
		if !ok {
			a, found := annotations[ev.Package+"."+strings.SplitN(ev.Test, "/", 2)[0]]
			if !found {
				a = Annotation{Category: category(ev.Package)}
			}
			res = &Result{Name: ev.Test, Package: ev.Package, Annotations: a}
			results[key] = res
		}
		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "" || res.Status == "not run" || res.Status == "fail" {
				res.Failure += ev.Output
			}
		}
	}

	list := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Status != "fail" {
			r.Failure = ""
		}
		list = append(list, *r)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func summarize(results []Result) Summary {
	s := Summary{GeneratedAt: time.Now().UTC(), Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		case "skip":
			s.Skipped++
		}
	}
	return s
}

func markdown(s Summary, title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# PinPoint %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	status := "PASSED"
	if s.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)
	sb.WriteString("| Total | Passed | Failed | Skipped |\n|-------|--------|--------|---------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n\n", s.Total, s.Passed, s.Failed, s.Skipped)

	byCategory := make(map[string][]Result)
	for _, r := range s.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}
	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(&sb, "## %s\n\n| ID | Test | Status | Purpose | Security |\n|----|------|--------|---------|----------|\n", name)
		for _, r := range byCategory[name] {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				r.Annotations.TestCaseID, r.Name, r.Status, r.Annotations.Purpose, r.Annotations.Security)
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failures\n\n")
		for _, r := range s.Results {
			if r.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n\n```\n%s```\n\n", r.Name, r.Package, r.Failure)
			}
		}
	}
	return sb.String()
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
