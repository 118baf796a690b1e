//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

const binary = "bin/gfxhal-shaders"

type Build mg.Namespace

// Builds the shader compiler binary into bin/.
func (Build) Binary() error {
	_, err := executeCmd("go", withArgs("build", "-o", binary, "."), withStream())
	return err
}

// Compiles assets/shaders for every backend into build/shaders.
func (Build) Shaders() error {
	mg.Deps(Build.Binary)
	_, err := executeCmd(binary, withArgs("-t", "vulkan,dx12,metal", "assets/shaders", "build/shaders"), withStream())
	return err
}
