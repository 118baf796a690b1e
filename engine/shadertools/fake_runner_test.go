package shadertools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

type invocation struct {
	tool  Tool
	args  []string
	stdin string
}

// fakeRunner imitates the shader tools on top of a MemFileSystem. glslc
// "compiles" by prefixing its input, spirv-cross answers from the canned
// per file outputs and dxc/xcrun write their -Fo/-o file.
type fakeRunner struct {
	mu    sync.Mutex
	fs    *core.MemFileSystem
	calls []invocation

	// keyed by source base name, e.g. "tri.vert"
	reflections map[string]string
	hlsl        map[string]string
	msl         map[string]string
	// fail makes every invocation whose joined argv or stdin contains the
	// key exit non-zero.
	fail map[string]bool
}

func newFakeRunner(fs *core.MemFileSystem) *fakeRunner {
	return &fakeRunner{
		fs:          fs,
		reflections: make(map[string]string),
		hlsl:        make(map[string]string),
		msl:         make(map[string]string),
		fail:        make(map[string]bool),
	}
}

const fakeSPIRVHeader = "SPIRV\n"

func baseName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{ExtCrossSPIRV, ExtSPIRV, ExtHLSL, ExtMSL, ExtAIR} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func (f *fakeRunner) Run(_ context.Context, tool Tool, args []string, stdin []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{tool: tool, args: append([]string(nil), args...), stdin: string(stdin)})
	f.mu.Unlock()

	line := tool.String() + " " + strings.Join(args, " ")
	for key := range f.fail {
		if strings.Contains(line, key) || strings.Contains(string(stdin), key) {
			return nil, core.NewError(core.KindToolFailure, tool.String(), "error: %s: simulated failure", key)
		}
	}

	last := ""
	if len(args) > 0 {
		last = args[len(args)-1]
	}
	switch tool {
	case ToolGlslc:
		return append([]byte(fakeSPIRVHeader), stdin...), nil
	case ToolSpirvCross:
		switch args[0] {
		case "--vulkan-semantics":
			spv, err := f.fs.ReadFile(last)
			if err != nil {
				return nil, err
			}
			return []byte(strings.TrimPrefix(string(spv), fakeSPIRVHeader)), nil
		case "--reflect":
			if r, ok := f.reflections[baseName(last)]; ok {
				return []byte(r), nil
			}
			return []byte(`{}`), nil
		case "--hlsl":
			return []byte(f.hlsl[baseName(last)]), nil
		case "--msl":
			return []byte(f.msl[baseName(last)]), nil
		}
	case ToolDxc:
		for i, a := range args {
			if a == "-Fo" {
				return nil, f.fs.WriteFile(args[i+1], []byte("DXIL"))
			}
		}
	case ToolXcrun:
		for i, a := range args {
			if a == "-o" {
				return nil, f.fs.WriteFile(args[i+1], []byte(strings.Join(args[:3], " ")))
			}
		}
	}
	return nil, fmt.Errorf("fake runner: unexpected %s", line)
}

func (f *fakeRunner) count(tool Tool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.tool == tool {
			n++
		}
	}
	return n
}

func (f *fakeRunner) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// steppingClock hands out strictly increasing modification times.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestFS() *core.MemFileSystem {
	fs := core.NewMemFileSystem()
	clock := &steppingClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	fs.Now = clock.now
	return fs
}
