package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/gfxhal/engine/core"
)

func TestNewWindowRejectsEmptySize(t *testing.T) {
	_, err := NewWindow(WindowConfig{Title: "zero", Width: 0, Height: 600})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func TestFramebufferSizeCallback(t *testing.T) {
	w := &Window{}
	var got [2]int
	w.OnResize(func(width, height int) { got = [2]int{width, height} })
	w.framebufferSizeCallback(nil, 1280, 720)

	width, height := w.FramebufferSize()
	assert.Equal(t, 1280, width)
	assert.Equal(t, 720, height)
	assert.Equal(t, [2]int{1280, 720}, got)
	assert.Equal(t, glfw.True, boolHint(true))
}
