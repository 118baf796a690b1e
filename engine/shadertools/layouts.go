package shadertools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

var (
	layoutQualifier  = regexp2.MustCompile(`^(.*?)layout\s*\(([^)]*)\)(.*)$`, regexp2.None)
	bindingQualifier = regexp2.MustCompile(`^\s*(binding|set)\s*=\s*(\d+)\s*$`, regexp2.None)
	hlslRegister     = regexp2.MustCompile(`register\s*\(\s*([bstu])\d+\s*(?:,\s*space(\d+)\s*)?\)`, regexp2.None)
)

// PatchLayoutsGLSL moves the binding number of every layout qualifier into
// its descriptor set: layout(binding = 3) becomes layout(set = 3, binding = 0).
// A layout that already names a non-zero set keeps it and must use
// binding 0. spirv-cross prints set = 0 explicitly, which counts as unset.
func PatchLayoutsGLSL(src string) (string, error) {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		m, err := layoutQualifier.FindStringMatch(strings.TrimRight(line, "\r"))
		if err != nil {
			return "", core.WrapError(core.KindUsageViolation, "PatchLayoutsGLSL", err, "line %d", i+1)
		}
		if m == nil {
			continue
		}
		quals, changed, err := collapseBinding(m.GroupByNumber(2).String())
		if err != nil {
			return "", core.WrapError(core.KindUsageViolation, "PatchLayoutsGLSL", err, "line %d", i+1)
		}
		if changed {
			lines[i] = m.GroupByNumber(1).String() + "layout(" + quals + ")" + m.GroupByNumber(3).String()
		}
	}
	return strings.Join(lines, "\n"), nil
}

func collapseBinding(qualifiers string) (string, bool, error) {
	parts := strings.Split(qualifiers, ",")
	var rest []string
	set, binding := -1, -1
	bindingAt := -1
	for _, p := range parts {
		m, err := bindingQualifier.FindStringMatch(p)
		if err != nil {
			return "", false, err
		}
		if m == nil {
			rest = append(rest, strings.TrimSpace(p))
			continue
		}
		n, _ := strconv.Atoi(m.GroupByNumber(2).String())
		if m.GroupByNumber(1).String() == "set" {
			set = n
			continue
		}
		binding = n
		bindingAt = len(rest)
	}
	if binding < 0 {
		return qualifiers, false, nil
	}
	if set <= 0 {
		set = binding
	} else if binding != 0 {
		return "", false, fmt.Errorf("layout(%s) uses set %d and binding %d, only one of them may be non-zero", strings.TrimSpace(qualifiers), set, binding)
	}
	patched := fmt.Sprintf("set = %d, binding = 0", set)
	out := append(append(append([]string(nil), rest[:bindingAt]...), patched), rest[bindingAt:]...)
	return strings.Join(out, ", "), true, nil
}

// PatchLayoutsHLSL rewrites every register(xN[, spaceM]) declaration to
// register(x0, spaceM). Declarations without a space get the next free
// space in declaration order; a sampler directly following a texture shares
// the texture's space.
func PatchLayoutsHLSL(src string) (string, error) {
	nextSpace := 0
	lastTexture := -1
	out, err := hlslRegister.ReplaceFunc(src, func(m regexp2.Match) string {
		class := m.GroupByNumber(1).String()
		space := -1
		if g := m.GroupByNumber(2); len(g.Captures) > 0 {
			space, _ = strconv.Atoi(g.String())
			nextSpace = max(nextSpace, space+1)
		}
		if space < 0 {
			if class == "s" && lastTexture >= 0 {
				space = lastTexture
			} else {
				space = nextSpace
				nextSpace++
			}
		}
		lastTexture = -1
		if class == "t" {
			lastTexture = space
		}
		return fmt.Sprintf("register(%s0, space%d)", class, space)
	}, -1, -1)
	if err != nil {
		return "", core.WrapError(core.KindUsageViolation, "PatchLayoutsHLSL", err, "")
	}
	return out, nil
}
