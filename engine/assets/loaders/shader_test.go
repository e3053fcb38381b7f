package loaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

func TestMain(m *testing.M) {
	core.SetDefaultLogger(core.NewDiscardLogger())
	os.Exit(m.Run())
}

const worldShaderConfig = `# Builtin world shader
name Shader.Builtin.World
render_pass Renderpass.Builtin.World
stages vertex fragment
stage_files shaders/Builtin.WorldShader.vert.spv shaders/Builtin.WorldShader.frag.spv

attribute vec3 in_position
attribute vec3 in_normal
attribute vec2 in_texcoord

uniform mat4 0 projection
uniform mat4 0 view
uniform vec4 1 diffuse_colour   # per-instance tint
uniform samp 1 diffuse_texture
uniform mat4 2 model
`

func TestParseShaderConfig(t *testing.T) {
	config, err := ParseShaderConfig(strings.NewReader(worldShaderConfig), "world.shadercfg")
	if err != nil {
		t.Fatal(err)
	}
	if config.Name != "Shader.Builtin.World" || config.RenderpassName != "Renderpass.Builtin.World" {
		t.Fatalf("unexpected header %q %q", config.Name, config.RenderpassName)
	}
	if len(config.Stages) != 2 || config.Stages[0] != metadata.ShaderStageVertex || config.Stages[1] != metadata.ShaderStageFragment {
		t.Fatalf("unexpected stages %v", config.Stages)
	}
	if config.StageFilenames[1] != "shaders/Builtin.WorldShader.frag.spv" {
		t.Fatalf("unexpected stage files %v", config.StageFilenames)
	}
	if len(config.Attributes) != 3 || config.Attributes[2].Size != 8 || config.Attributes[2].Name != "in_texcoord" {
		t.Fatalf("unexpected attributes %+v", config.Attributes)
	}
	if len(config.Uniforms) != 5 {
		t.Fatalf("expected 5 uniforms, got %d", len(config.Uniforms))
	}
	tests := []struct {
		name        string
		uniformType metadata.ShaderUniformType
		scope       metadata.ShaderScope
		size        uint8
	}{
		{"projection", metadata.ShaderUniformTypeMatrix4, metadata.ShaderScopeGlobal, 64},
		{"view", metadata.ShaderUniformTypeMatrix4, metadata.ShaderScopeGlobal, 64},
		{"diffuse_colour", metadata.ShaderUniformTypeFloat32_4, metadata.ShaderScopeInstance, 16},
		{"diffuse_texture", metadata.ShaderUniformTypeSampler, metadata.ShaderScopeInstance, 0},
		{"model", metadata.ShaderUniformTypeMatrix4, metadata.ShaderScopeLocal, 64},
	}
	for i, tc := range tests {
		u := config.Uniforms[i]
		if u.Name != tc.name || u.ShaderUniformType != tc.uniformType || u.Scope != tc.scope || u.Size != tc.size {
			t.Fatalf("uniform %d = %+v, want %+v", i, u, tc)
		}
	}
	if config.CullMode != metadata.FaceCullModeBack || !config.DepthTest || !config.DepthWrite {
		t.Fatal("unexpected pipeline defaults")
	}
	if config.SourcePath != "world.shadercfg" {
		t.Fatalf("unexpected source path %q", config.SourcePath)
	}
}

func TestParseShaderConfigOptionalRecords(t *testing.T) {
	src := worldShaderConfig + "cull_mode none\ndepth_test false\ndepth_write 0\n"
	config, err := ParseShaderConfig(strings.NewReader(src), "world.shadercfg")
	if err != nil {
		t.Fatal(err)
	}
	if config.CullMode != metadata.FaceCullModeNone || config.DepthTest || config.DepthWrite {
		t.Fatalf("optional records ignored: %+v", config)
	}
}

func TestParseShaderConfigCustomUniform(t *testing.T) {
	src := worldShaderConfig + "uniform custom 0 lights 48\n"
	config, err := ParseShaderConfig(strings.NewReader(src), "world.shadercfg")
	if err != nil {
		t.Fatal(err)
	}
	u := config.Uniforms[len(config.Uniforms)-1]
	if u.Name != "lights" || u.ShaderUniformType != metadata.ShaderUniformTypeCustom || u.Scope != metadata.ShaderScopeGlobal || u.Size != 48 {
		t.Fatalf("unexpected custom uniform %+v", u)
	}
}

func TestParseShaderConfigErrors(t *testing.T) {
	header := "name a\nrender_pass b\nstages vertex\nstage_files a.spv\n"
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing name", "render_pass b\nstages vertex\nstage_files a.spv\n", "missing required `name`"},
		{"missing stage files", "name a\nrender_pass b\nstages vertex\n", "missing required `stage_files`"},
		{"duplicate name", header + "name again\n", "test.shadercfg:5: duplicate `name` record, first declared on line 1"},
		{"count mismatch", "name a\nrender_pass b\nstages vertex fragment\nstage_files a.spv\n", "test.shadercfg:4: 2 stages declared but 1 stage files given"},
		{"unknown record", header + "\n# comment\nversion 1\n", "test.shadercfg:7: unknown record `version`"},
		{"bad stage", "name a\nstages tessellation\n", "test.shadercfg:2:"},
		{"bad attribute", header + "attribute vec9 pos\n", "test.shadercfg:5:"},
		{"short attribute", header + "attribute vec3\n", "expected `attribute <type> <name>`"},
		{"bad uniform type", header + "uniform mat5 0 m\n", "test.shadercfg:5:"},
		{"bad scope", header + "uniform mat4 global m\n", "scope must be an integer"},
		{"scope out of range", header + "uniform mat4 3 m\n", "not a valid shader scope"},
		{"bad cull mode", header + "cull_mode sideways\n", "test.shadercfg:5:"},
		{"bad depth flag", header + "depth_test maybe\n", "must be a boolean"},
		{"custom without size", header + "uniform custom 1 lights\n", "test.shadercfg:5: custom uniform `lights` needs a size"},
		{"custom zero size", header + "uniform custom 1 lights 0\n", "test.shadercfg:5: custom uniform `lights` size must be 1-255 bytes"},
		{"custom oversized", header + "uniform custom 1 lights 4096\n", "size must be 1-255 bytes"},
		{"sized builtin", header + "uniform mat4 0 m 64\n", "test.shadercfg:5: only custom uniforms take a size"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseShaderConfig(strings.NewReader(tc.src), "test.shadercfg")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestShaderConfigLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Builtin.WorldShader.shadercfg")
	if err := os.WriteFile(path, []byte(worldShaderConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := &ShaderConfigLoader{}
	resource, err := loader.Load(path, metadata.ResourceTypeShader, nil)
	if err != nil {
		t.Fatal(err)
	}
	config, ok := resource.Data.(*metadata.ShaderConfig)
	if !ok || resource.Name != "Shader.Builtin.World" || config.SourcePath != path {
		t.Fatalf("unexpected resource %+v", resource)
	}
	if _, err := loader.Load(path, metadata.ResourceTypeImage, nil); err == nil {
		t.Fatal("expected an error for the wrong resource type")
	}
	if _, err := loader.Load(filepath.Join(dir, "missing.shadercfg"), metadata.ResourceTypeShader, nil); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
