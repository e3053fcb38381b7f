package loaders

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/tundra/engine/core"
	"github.com/spaghettifunk/tundra/engine/renderer/metadata"
)

// ShaderConfigLoader reads .shadercfg files into a *metadata.ShaderConfig.
type ShaderConfigLoader struct{}

func (sl *ShaderConfigLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	if assetType != metadata.ResourceTypeShader {
		return nil, errors.Newf("shader config loader cannot load %s resources", assetType)
	}
	f, err := os.Open(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to open shader config")
		core.LogError("%s", err)
		return nil, err
	}
	defer f.Close()

	config, err := ParseShaderConfig(f, path)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	return &metadata.Resource{
		Name:     config.Name,
		FullPath: path,
		DataSize: uint64(len(config.Uniforms) + len(config.Attributes)),
		Data:     config,
	}, nil
}

func (sl *ShaderConfigLoader) Unload(*metadata.Resource) error {
	return nil
}

// ParseShaderConfig reads the line based shader config format. Each non
// comment line is a record whose first token names it. Errors carry the
// source path and line number.
func ParseShaderConfig(r io.Reader, path string) (*metadata.ShaderConfig, error) {
	config := &metadata.ShaderConfig{
		SourcePath: path,
		CullMode:   metadata.FaceCullModeBack,
		DepthTest:  true,
		DepthWrite: true,
	}
	seen := make(map[string]int)
	stageFilesLine := 0

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		record, args := fields[0], fields[1:]
		lineErr := func(format string, a ...interface{}) error {
			return errors.Newf("%s:%d: "+format, append([]interface{}{path, lineNumber}, a...)...)
		}

		switch record {
		case "name", "render_pass", "stages", "stage_files", "cull_mode", "depth_test", "depth_write":
			if first, ok := seen[record]; ok {
				return nil, lineErr("duplicate `%s` record, first declared on line %d", record, first)
			}
			seen[record] = lineNumber
		}

		switch record {
		case "name":
			if len(args) != 1 {
				return nil, lineErr("`name` takes exactly one value")
			}
			config.Name = args[0]
		case "render_pass":
			if len(args) != 1 {
				return nil, lineErr("`render_pass` takes exactly one value")
			}
			config.RenderpassName = args[0]
		case "stages":
			if len(args) == 0 {
				return nil, lineErr("`stages` needs at least one stage")
			}
			for _, s := range args {
				stage, err := metadata.ShaderStageFromString(s)
				if err != nil {
					return nil, lineErr("%s", err.Error())
				}
				config.Stages = append(config.Stages, stage)
				config.StageNames = append(config.StageNames, s)
			}
		case "stage_files":
			if len(args) == 0 {
				return nil, lineErr("`stage_files` needs at least one file")
			}
			config.StageFilenames = append(config.StageFilenames, args...)
			stageFilesLine = lineNumber
		case "attribute":
			if len(args) != 2 {
				return nil, lineErr("expected `attribute <type> <name>`")
			}
			attributeType, err := metadata.ShaderAttributeTypeFromString(args[0])
			if err != nil {
				return nil, lineErr("%s", err.Error())
			}
			config.Attributes = append(config.Attributes, &metadata.ShaderAttributeConfig{
				Name:                args[1],
				Size:                uint8(attributeType.Size()),
				ShaderAttributeType: attributeType,
			})
		case "uniform":
			if len(args) != 3 && len(args) != 4 {
				return nil, lineErr("expected `uniform <type> <scope> <name>`, custom uniforms add a size")
			}
			uniform, err := parseUniform(args)
			if err != nil {
				return nil, lineErr("%s", err.Error())
			}
			config.Uniforms = append(config.Uniforms, uniform)
		case "cull_mode":
			if len(args) != 1 {
				return nil, lineErr("`cull_mode` takes exactly one value")
			}
			mode, err := metadata.FaceCullModeFromString(args[0])
			if err != nil {
				return nil, lineErr("%s", err.Error())
			}
			config.CullMode = mode
		case "depth_test", "depth_write":
			if len(args) != 1 {
				return nil, lineErr("`%s` takes exactly one value", record)
			}
			value, err := strconv.ParseBool(args[0])
			if err != nil {
				return nil, lineErr("`%s` must be a boolean, got %q", record, args[0])
			}
			if record == "depth_test" {
				config.DepthTest = value
			} else {
				config.DepthWrite = value
			}
		default:
			return nil, lineErr("unknown record `%s`", record)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to read shader config", path)
	}

	for _, required := range []string{"name", "render_pass", "stages", "stage_files"} {
		if _, ok := seen[required]; !ok {
			return nil, errors.Newf("%s:%d: missing required `%s` record", path, lineNumber, required)
		}
	}
	if len(config.Stages) != len(config.StageFilenames) {
		return nil, errors.Newf("%s:%d: %d stages declared but %d stage files given",
			path, stageFilesLine, len(config.Stages), len(config.StageFilenames))
	}
	return config, nil
}

func parseUniform(args []string) (*metadata.ShaderUniformConfig, error) {
	uniformType, err := metadata.ShaderUniformTypeFromString(args[0])
	if err != nil {
		return nil, err
	}
	scopeValue, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, errors.Newf("uniform scope must be an integer, got %q", args[1])
	}
	scope, err := metadata.ShaderScopeFromInt(scopeValue)
	if err != nil {
		return nil, err
	}
	uniform := &metadata.ShaderUniformConfig{
		Name:              args[2],
		ShaderUniformType: uniformType,
		Scope:             scope,
	}
	if uniformType != metadata.ShaderUniformTypeCustom {
		if len(args) != 3 {
			return nil, errors.Newf("only custom uniforms take a size, `%s` is %s", args[2], args[0])
		}
		size, err := uniformType.Size()
		if err != nil {
			return nil, err
		}
		uniform.Size = uint8(size)
		return uniform, nil
	}

	// uniform custom <scope> <name> <size>
	if len(args) != 4 {
		return nil, errors.Newf("custom uniform `%s` needs a size", args[2])
	}
	size, err := strconv.ParseUint(args[3], 10, 8)
	if err != nil || size == 0 {
		return nil, errors.Newf("custom uniform `%s` size must be 1-255 bytes, got %q", args[2], args[3])
	}
	uniform.Size = uint8(size)
	return uniform, nil
}
