package shadertools

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

var (
	includeDirective = regexp2.MustCompile(`^\s*#\s*include\s*([<"])([^>"]+)[>"]`, regexp2.None)
	versionDirective = regexp2.MustCompile(`^\s*#\s*version\b`, regexp2.None)
)

type preprocessor struct {
	fs          core.FileSystem
	includeDirs []string
	stack       []string
}

// Preprocess inlines every #include of path and defines the macros right
// after the #version line. Quoted includes are looked up next to the
// including file first, then in includeDirs; angle includes only in
// includeDirs. A file including itself, directly or not, is an error.
func Preprocess(fsys core.FileSystem, path string, includeDirs []string, defines map[string]string) (string, error) {
	p := &preprocessor{fs: fsys, includeDirs: includeDirs}
	var out strings.Builder
	if err := p.expand(filepath.Clean(path), &out); err != nil {
		return "", err
	}
	return injectDefines(out.String(), defines), nil
}

func (p *preprocessor) expand(path string, out *strings.Builder) error {
	for _, open := range p.stack {
		if open == path {
			chain := append(append([]string(nil), p.stack...), path)
			return core.NewError(core.KindUsageViolation, "Preprocess", "include cycle: %s", strings.Join(chain, " -> "))
		}
	}
	src, err := p.fs.ReadFile(path)
	if err != nil {
		return err
	}
	p.stack = append(p.stack, path)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	for _, line := range strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n") {
		m, err := includeDirective.FindStringMatch(line)
		if err != nil {
			return core.WrapError(core.KindUsageViolation, "Preprocess", err, "%s", path)
		}
		if m == nil {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		quoted := m.GroupByNumber(1).String() == `"`
		resolved, err := p.resolve(path, m.GroupByNumber(2).String(), quoted)
		if err != nil {
			return err
		}
		if err := p.expand(resolved, out); err != nil {
			return err
		}
	}
	return nil
}

func (p *preprocessor) resolve(from, name string, quoted bool) (string, error) {
	var candidates []string
	if quoted {
		candidates = append(candidates, filepath.Join(filepath.Dir(from), name))
	}
	for _, dir := range p.includeDirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, c := range candidates {
		if p.fs.Exists(c) {
			return filepath.Clean(c), nil
		}
	}
	return "", core.NewError(core.KindIOFailure, "Preprocess", "%s: cannot find include %q", from, name)
}

func injectDefines(src string, defines map[string]string) string {
	if len(defines) == 0 {
		return src
	}
	names := make([]string, 0, len(defines))
	for n := range defines {
		names = append(names, n)
	}
	sort.Strings(names)
	var block strings.Builder
	for _, n := range names {
		block.WriteString("#define " + n)
		if v := defines[n]; v != "" {
			block.WriteString(" " + v)
		}
		block.WriteByte('\n')
	}

	lines := strings.SplitAfter(src, "\n")
	for i, line := range lines {
		if ok, _ := versionDirective.MatchString(line); ok {
			head := strings.Join(lines[:i+1], "")
			if !strings.HasSuffix(head, "\n") {
				head += "\n"
			}
			return head + block.String() + strings.Join(lines[i+1:], "")
		}
	}
	return block.String() + src
}

// ParseDefines turns NAME=VALUE (or bare NAME) pairs into a macro map.
func ParseDefines(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, _ := strings.Cut(p, "=")
		if name = strings.TrimSpace(name); name != "" {
			out[name] = strings.TrimSpace(value)
		}
	}
	return out
}
