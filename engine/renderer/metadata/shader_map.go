package metadata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Section headers of the binding map text format.
const (
	sectionInputAttributes    = "INPUT_ATTRIBUTES"
	sectionDescriptors        = "DESCRIPTORS"
	sectionUniformBuffers     = "UNIFORM_BUFFER_INFOS"
	sectionShaderStorageInfos = "SHADER_STORAGE_BUFFER_INFOS"
)

// WriteShaderMap serializes r in the binding map format. Every section is
// always written, with a zero count when empty. Descriptors with native
// indices get them as extra columns: the buffer or texture index, then the
// sampler index for combined image samplers.
func (r *ShaderReflection) WriteShaderMap(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s %d\n", sectionInputAttributes, len(r.Attributes))
	for _, a := range r.Attributes {
		semantic := a.Semantic
		if semantic == "" {
			semantic = SemanticUndefined
		}
		fmt.Fprintf(bw, "  %s %s %d %s\n", a.Name, semantic, a.Location, a.Format)
	}

	fmt.Fprintf(bw, "%s %d\n", sectionDescriptors, len(r.Descriptors))
	for _, d := range r.Descriptors {
		fmt.Fprintf(bw, "  %s %s %d", d.Name, d.Type, d.Set)
		if d.Native != nil {
			fmt.Fprintf(bw, " %d", d.Native.Index)
			if d.Type == DescriptorTypeCombinedImageSampler {
				fmt.Fprintf(bw, " %d", d.Native.Sampler)
			}
		}
		bw.WriteByte('\n')
	}

	writeBufferInfos(bw, sectionUniformBuffers, r.UniformBuffers)
	writeBufferInfos(bw, sectionShaderStorageInfos, r.StorageBuffers)
	return bw.Flush()
}

func writeBufferInfos(w io.Writer, section string, infos []BufferInfo) {
	fmt.Fprintf(w, "%s %d\n", section, len(infos))
	for _, b := range infos {
		fmt.Fprintf(w, "  %s %d %d %d\n", b.Name, b.Set, boolToInt(b.ReadOnly), len(b.Members))
		for _, m := range b.Members {
			fmt.Fprintf(w, "    %s %d %d %d %d\n", m.Name, m.Offset, m.Size, m.ArrayCount, m.ArrayStride)
		}
	}
}

// FormatShaderMap is WriteShaderMap into a byte slice.
func FormatShaderMap(r *ShaderReflection) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail
	_ = r.WriteShaderMap(&buf)
	return buf.Bytes()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ShaderMapError reports malformed binding map input.
type ShaderMapError struct {
	Line int
	Msg  string
}

func (e *ShaderMapError) Error() string {
	return fmt.Sprintf("binding map: line %d: %s", e.Line, e.Msg)
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (r *lineReader) errorf(format string, args ...interface{}) error {
	return &ShaderMapError{Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

// record returns the tokens of the next non-blank line, which must have
// between min and max of them.
func (r *lineReader) record(what string, min, max int) ([]string, error) {
	for r.sc.Scan() {
		r.line++
		fields := strings.Fields(r.sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < min || len(fields) > max {
			if min == max {
				return nil, r.errorf("%s needs %d fields, got %d", what, min, len(fields))
			}
			return nil, r.errorf("%s needs %d to %d fields, got %d", what, min, max, len(fields))
		}
		return fields, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, r.errorf("unexpected end of input, expected %s", what)
}

// header reads a "SECTION <n>" line.
func (r *lineReader) header(section string) (uint32, error) {
	fields, err := r.record(section, 2, 2)
	if err != nil {
		return 0, err
	}
	if fields[0] != section {
		return 0, r.errorf("expected %s, got %q", section, fields[0])
	}
	return r.uint(fields[1])
}

func (r *lineReader) uint(tok string) (uint32, error) {
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, r.errorf("expected unsigned integer, got %q", tok)
	}
	return uint32(v), nil
}

// ParseShaderMap reads a binding map. Sections must appear in the order they
// are written and every record sits on its own line. Storage buffer
// descriptors inherit the readonly flag of the storage block with the same
// name.
func ParseShaderMap(rd io.Reader) (*ShaderReflection, error) {
	r := &lineReader{sc: bufio.NewScanner(rd)}
	out := &ShaderReflection{}

	n, err := r.header(sectionInputAttributes)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		f, err := r.record("input attribute", 4, 4)
		if err != nil {
			return nil, err
		}
		a := AttributeInfo{Name: f[0], Semantic: f[1]}
		if a.Location, err = r.uint(f[2]); err != nil {
			return nil, err
		}
		if a.Format, err = ParseVertexFormat(f[3]); err != nil {
			return nil, r.errorf("%v", err)
		}
		_, a.Count, a.ElementSize = a.Format.Layout()
		out.Attributes = append(out.Attributes, a)
	}

	if n, err = r.header(sectionDescriptors); err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		f, err := r.record("descriptor", 3, 5)
		if err != nil {
			return nil, err
		}
		d := DescriptorInfo{Name: f[0]}
		if d.Type, err = ParseDescriptorType(f[1]); err != nil {
			return nil, r.errorf("%v", err)
		}
		if d.Set, err = r.uint(f[2]); err != nil {
			return nil, err
		}
		if len(f) > 3 {
			if d.Native, err = r.native(d.Type, f[3:]); err != nil {
				return nil, err
			}
		}
		out.Descriptors = append(out.Descriptors, d)
	}

	if out.UniformBuffers, err = parseBufferInfos(r, sectionUniformBuffers); err != nil {
		return nil, err
	}
	if out.StorageBuffers, err = parseBufferInfos(r, sectionShaderStorageInfos); err != nil {
		return nil, err
	}

	for i, d := range out.Descriptors {
		if d.Type != DescriptorTypeStorageBuffer {
			continue
		}
		for _, b := range out.StorageBuffers {
			if b.Name == d.Name {
				out.Descriptors[i].ReadOnly = b.ReadOnly
			}
		}
	}
	return out, nil
}

func (r *lineReader) native(t DescriptorType, cols []string) (*NativeIndex, error) {
	want := 1
	if t == DescriptorTypeCombinedImageSampler {
		want = 2
	}
	if len(cols) != want {
		return nil, r.errorf("%s takes %d native index columns, got %d", t, want, len(cols))
	}
	n := &NativeIndex{}
	var err error
	if n.Index, err = r.uint(cols[0]); err != nil {
		return nil, err
	}
	if want == 2 {
		if n.Sampler, err = r.uint(cols[1]); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func parseBufferInfos(r *lineReader, section string) ([]BufferInfo, error) {
	n, err := r.header(section)
	if err != nil {
		return nil, err
	}
	var infos []BufferInfo
	for i := uint32(0); i < n; i++ {
		f, err := r.record("buffer block", 4, 4)
		if err != nil {
			return nil, err
		}
		b := BufferInfo{Name: f[0]}
		if b.Set, err = r.uint(f[1]); err != nil {
			return nil, err
		}
		ro, err := r.uint(f[2])
		if err != nil {
			return nil, err
		}
		if ro > 1 {
			return nil, r.errorf("readonly must be 0 or 1, got %d", ro)
		}
		b.ReadOnly = ro == 1
		count, err := r.uint(f[3])
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < count; j++ {
			mf, err := r.record("buffer member", 5, 5)
			if err != nil {
				return nil, err
			}
			m := BufferMemberInfo{Name: mf[0]}
			for k, dst := range []*uint32{&m.Offset, &m.Size, &m.ArrayCount, &m.ArrayStride} {
				if *dst, err = r.uint(mf[k+1]); err != nil {
					return nil, err
				}
			}
			b.Members = append(b.Members, m)
		}
		infos = append(infos, b)
	}
	return infos, nil
}
