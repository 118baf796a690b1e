package renderer

import "github.com/google/uuid"

// NewLabel returns a unique debug label such as "texture-5f1c2a9e".
func NewLabel(kind string) string {
	return kind + "-" + uuid.NewString()[:8]
}
