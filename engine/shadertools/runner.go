package shadertools

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

/** @brief An external executable the pipeline drives. */
type Tool int

const (
	ToolGlslc Tool = iota
	ToolSpirvCross
	ToolDxc
	ToolXcrun
)

func (t Tool) String() string {
	switch t {
	case ToolSpirvCross:
		return "spirv-cross"
	case ToolDxc:
		return "dxc"
	case ToolXcrun:
		return "xcrun"
	}
	return "glslc"
}

// ToolRunner runs one tool invocation and returns its standard output.
// stdin may be nil. A non-zero exit is reported as a KindToolFailure error
// carrying the diagnostic the tool printed.
type ToolRunner interface {
	Run(ctx context.Context, tool Tool, args []string, stdin []byte) ([]byte, error)
}

// ExecRunner runs the tools as child processes.
type ExecRunner struct {
	commands map[Tool][]string
}

// NewExecRunner resolves the command line of every tool. An empty path
// falls back to the tool name on PATH. A path may carry a whole command
// line, e.g. "wine /opt/dxc/dxc.exe".
func NewExecRunner(paths core.ToolPaths) (*ExecRunner, error) {
	r := &ExecRunner{commands: make(map[Tool][]string)}
	for tool, path := range map[Tool]string{
		ToolGlslc:      paths.Glslc,
		ToolSpirvCross: paths.SpirvCross,
		ToolDxc:        paths.Dxc,
		ToolXcrun:      paths.Xcrun,
	} {
		if strings.TrimSpace(path) == "" {
			r.commands[tool] = []string{tool.String()}
			continue
		}
		words, err := shellwords.Parse(path)
		if err != nil {
			return nil, core.WrapError(core.KindUsageViolation, "NewExecRunner", err, "invalid %s command line %q", tool, path)
		}
		if len(words) == 0 {
			words = []string{tool.String()}
		}
		r.commands[tool] = words
	}
	return r, nil
}

// Command returns the argv prefix used for tool.
func (r *ExecRunner) Command(tool Tool) []string {
	return append([]string(nil), r.commands[tool]...)
}

func (r *ExecRunner) Run(ctx context.Context, tool Tool, args []string, stdin []byte) ([]byte, error) {
	argv := append(r.Command(tool), args...)
	core.LogDebug(">> %s", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = strings.TrimSpace(stdout.String())
		}
		return nil, core.WrapError(core.KindToolFailure, tool.String(), err, "%s", diag)
	}
	return stdout.Bytes(), nil
}
