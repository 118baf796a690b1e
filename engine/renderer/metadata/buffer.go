package metadata

// BufferDesc describes a buffer to create. State is tracked for the whole
// buffer, never per range.
type BufferDesc struct {
	Label        string
	Size         uint64
	Usage        BufferUsage
	InitialState ResourceState
	// HostVisible buffers can be mapped for uploads and downloads.
	HostVisible bool
}
