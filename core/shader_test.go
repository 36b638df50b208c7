package core

import (
	"os"
	"path/filepath"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestSliceUint32(t *testing.T) {
	data := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0xFF, 0xFF, // trailing bytes are dropped
	}
	words := SliceUint32(data)
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0] != 1 || words[1] != 2 {
		t.Errorf("words = %v, want [1 2]", words)
	}
}

func TestStageInfo(t *testing.T) {
	vert := &VulkanShader{name: "v", shaderType: VertexShaderType}
	info, err := vert.StageInfo()
	if err != nil {
		t.Fatalf("StageInfo: %v", err)
	}
	if info.Stage != vk.ShaderStageVertexBit {
		t.Errorf("stage = %d, want vertex", info.Stage)
	}
	if info.PName != "main\x00" {
		t.Errorf("entry point = %q, want NUL terminated main", info.PName)
	}

	frag := &VulkanShader{name: "f", shaderType: FragmentShaderType}
	info, err = frag.StageInfo()
	if err != nil {
		t.Fatalf("StageInfo: %v", err)
	}
	if info.Stage != vk.ShaderStageFragmentBit {
		t.Errorf("stage = %d, want fragment", info.Stage)
	}

	unknown := &VulkanShader{name: "u", shaderType: UnknownShaderType}
	if _, err := unknown.StageInfo(); err == nil {
		t.Error("unknown shader type produced a stage info")
	}
}

func TestStagePermutationsPropagatesError(t *testing.T) {
	_, err := StagePermutations([][]*VulkanShader{
		{{name: "u", shaderType: UnknownShaderType}},
	})
	if err == nil {
		t.Error("permutation over an unknown shader type should fail")
	}
}

func TestLoadShadersFromDirectorySkipsNonShaders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"readme.txt",      // not SPIR-V
		"bad.spv",         // no type component
		"thing.geom.spv",  // unsupported stage
		"a.b.c.vert.spv",  // too many components
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	shaders, err := LoadShadersFromDirectory(dir, nil)
	if err != nil {
		t.Fatalf("LoadShadersFromDirectory: %v", err)
	}
	if len(shaders) != 0 {
		t.Errorf("loaded %d shaders from a directory without any", len(shaders))
	}
}

func TestLoadShadersFromDirectoryMissingDir(t *testing.T) {
	if _, err := LoadShadersFromDirectory(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("walking a missing directory should fail")
	}
}

func BenchmarkSliceUint32(b *testing.B) {
	data := make([]byte, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SliceUint32(data)
	}
}
