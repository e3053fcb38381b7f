//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/spaghettifunk/tundra/engine/assets/loaders"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every WGSL stage under assets/shaders into SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the engine and the testbed.
func (Build) Engine() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/tundra", "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	sources, err := filepath.Glob(filepath.Join(shaderDir, "*.wgsl"))
	if err != nil {
		return err
	}
	for _, src := range sources {
		dst := strings.TrimSuffix(src, ".wgsl") + ".spv"
		if upToDate(src, dst) {
			continue
		}
		fmt.Printf("Compiling: %s -> %s\n", src, dst)
		code, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		spirv, err := loaders.CompileWGSL(string(code))
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", src, err)
		}
		if err := os.WriteFile(dst, spirv, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// upToDate reports whether dst exists and is newer than src.
func upToDate(src, dst string) bool {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return dstInfo.ModTime().After(srcInfo.ModTime())
}
