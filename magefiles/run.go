//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Recompiles assets/shaders for Vulkan whenever a source changes.
func (Run) Watch() error {
	mg.Deps(Build.Binary)
	_, err := executeCmd(binary, withArgs("-t", "vulkan", "-w", "-v", "assets/shaders", "build/shaders"), withStream())
	return err
}

// Opens a window on the configured backend.
func (Run) Device() error {
	mg.Deps(Build.Binary)
	_, err := executeCmd(binary, withArgs("device", "--show"), withStream())
	return err
}
