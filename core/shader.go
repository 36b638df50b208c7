package core

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

const shaderSuffix = ".spv"

// NewVulkanShader wraps compiled SPIR-V bytes in a shader module.
func NewVulkanShader(name string, shaderType ShaderType, contents []byte, device vk.Device) (*VulkanShader, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(contents)),
		PCode:    SliceUint32(contents),
	}

	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(device, &smci, nil, &module)); err != nil {
		return nil, fmt.Errorf("vk.CreateShaderModule(%s): %s", name, err.Error())
	}

	return &VulkanShader{
		name:       name,
		shaderType: shaderType,
		device:     device,
		module:     module,
	}, nil
}

// VulkanShader is a Vulkan specific shader
type VulkanShader struct {
	name       string
	shaderType ShaderType
	device     vk.Device
	module     vk.ShaderModule
}

// Name returns the shader's name.
func (v *VulkanShader) Name() string { return v.name }

// Type returns the shader's type.
func (v *VulkanShader) Type() ShaderType { return v.shaderType }

// Module returns the native shader module.
func (v *VulkanShader) Module() vk.ShaderModule { return v.module }

// StageInfo returns the pipeline stage create info for this shader.
func (v *VulkanShader) StageInfo() (vk.PipelineShaderStageCreateInfo, error) {
	var stage vk.ShaderStageFlagBits
	switch v.shaderType {
	case VertexShaderType:
		stage = vk.ShaderStageVertexBit
	case FragmentShaderType:
		stage = vk.ShaderStageFragmentBit
	default:
		return vk.PipelineShaderStageCreateInfo{}, errors.New("unsupported shader type attempted creation")
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: v.module,
		PName:  "main\x00",
	}, nil
}

// Destroy implements Destroyable.
func (v *VulkanShader) Destroy() {
	vk.DestroyShaderModule(v.device, v.module, nil)
}

// StagePermutations builds one stage create info list per shader set,
// feeding the factory's shader stage characteristic.
func StagePermutations(sets [][]*VulkanShader) ([][]vk.PipelineShaderStageCreateInfo, error) {
	out := make([][]vk.PipelineShaderStageCreateInfo, 0, len(sets))
	for _, set := range sets {
		stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(set))
		for _, shader := range set {
			info, err := shader.StageInfo()
			if err != nil {
				return nil, err
			}
			stages = append(stages, info)
		}
		out = append(out, stages)
	}
	return out, nil
}

// LoadShadersFromDirectory creates a shader module for every compiled
// shader found under dir. File names follow name.type.spv where type is
// vert or frag; anything else is skipped.
func LoadShadersFromDirectory(dir string, device vk.Device) ([]*VulkanShader, error) {
	var shaders []*VulkanShader
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !strings.HasSuffix(f.Name(), shaderSuffix) {
			return nil
		}
		nodes := strings.Split(strings.TrimSuffix(f.Name(), shaderSuffix), ".")
		if len(nodes) != 2 {
			return nil
		}

		var shaderType ShaderType
		switch nodes[1] {
		case "vert":
			shaderType = VertexShaderType
		case "frag":
			shaderType = FragmentShaderType
		default:
			return nil
		}

		contents, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		shader, err := NewVulkanShader(nodes[0], shaderType, contents, device)
		if err != nil {
			return err
		}
		shaders = append(shaders, shader)
		return nil
	}); err != nil {
		return nil, err
	}
	return shaders, nil
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into a uint32, that is used
// to submit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}
