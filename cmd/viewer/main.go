package main

import (
	"runtime"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/core"
	"github.com/ShinkuKira21/linuxviewer/descriptor"
	"github.com/ShinkuKira21/linuxviewer/model"
	"github.com/ShinkuKira21/linuxviewer/pipeline"
	"github.com/ShinkuKira21/linuxviewer/rendergraph"
	"github.com/ShinkuKira21/linuxviewer/task"
)

func init() {
	runtime.LockOSThread()
}

var shaderBox = packr.NewBox("./shaders")

func newWindow(cfg core.RendererConfiguration) *sdl.Window {
	window, err := sdl.CreateWindow("LinuxViewer",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN)
	if err != nil {
		panic(err)
	}
	return window
}

func loadShader(name string, shaderType core.ShaderType, device vk.Device) *core.VulkanShader {
	contents, err := shaderBox.Find(name)
	if err != nil {
		panic(err)
	}
	shader, err := core.NewVulkanShader(name, shaderType, contents, device)
	if err != nil {
		panic(err)
	}
	return shader
}

func findShader(shaders []*core.VulkanShader, name string, shaderType core.ShaderType) *core.VulkanShader {
	for _, s := range shaders {
		if s.Name() == name && s.Type() == shaderType {
			return s
		}
	}
	return nil
}

// loadShaders returns the viewer's vertex and two fragment shaders, from
// LV_SHADER_DIR when set, otherwise from the embedded box.
func loadShaders(cfg core.RendererConfiguration, device vk.Device) (vertex, textured, flat *core.VulkanShader) {
	if cfg.ShaderDirectory != "" {
		shaders, err := core.LoadShadersFromDirectory(cfg.ShaderDirectory, device)
		if err != nil {
			panic(err)
		}
		vertex = findShader(shaders, "model", core.VertexShaderType)
		textured = findShader(shaders, "textured", core.FragmentShaderType)
		flat = findShader(shaders, "flat", core.FragmentShaderType)
		if vertex != nil && textured != nil && flat != nil {
			log.WithField("dir", cfg.ShaderDirectory).Info("shaders loaded from directory")
			return vertex, textured, flat
		}
		log.WithField("dir", cfg.ShaderDirectory).Warn("shader directory incomplete, using embedded shaders")
	}
	return loadShader("model.vert.spv", core.VertexShaderType, device),
		loadShader("textured.frag.spv", core.FragmentShaderType, device),
		loadShader("flat.frag.spv", core.FragmentShaderType, device)
}

func main() {
	configuration := core.LoadConfiguration()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		panic(err)
	}
	defer sdl.VulkanUnloadLibrary()

	sdlWindow := newWindow(configuration.Renderer)

	vkInstance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo,
		sdl.VulkanGetVkGetInstanceProcAddr(), core.InstanceConfiguration{
			Extensions: sdlWindow.VulkanGetInstanceExtensions(),
		})
	if err != nil {
		panic(err)
	}
	defer vkInstance.Destroy()

	surface, err := sdlWindow.VulkanCreateSurface(vkInstance.Inner())
	if err != nil {
		panic(err)
	}
	vkInstance.SetSurface(surface)
	log.WithField("extensions", vkInstance.Extensions()).Debug("vulkan instance ready")
	core.LogPhysicalDevices(vkInstance)

	deviceCfg := configuration.Device
	deviceCfg.Extensions = append(deviceCfg.Extensions, vk.KhrSwapchainExtensionName)
	dev, err := core.NewVulkanDevice(vkInstance, deviceCfg)
	if err != nil {
		panic(err)
	}
	defer dev.Destroy()
	log.WithField("device", dev.ID()).Info("logical device created")

	window := core.NewVulkanWindow(dev, vkInstance.Surface(), configuration.Renderer)
	if err := window.Initialise(); err != nil {
		panic(err)
	}
	defer window.Destroy()

	/* Render graph: one forward pass clearing and presenting the
	   swapchain attachment. */
	graph := rendergraph.New()
	output := graph.NewAttachment(rendergraph.ImageViewKind{
		Format: window.ImageFormat(),
		Aspect: vk.ImageAspectColorBit,
	}, "output")
	graph.SetPresentAttachment(output)

	forward := graph.NewRenderPass("forward")
	forward.Stores(output.Clear())

	if err := graph.Generate(dev); err != nil {
		panic(err)
	}

	if err := window.CreateFramebuffers(forward.Handle(), vk.NullImageView); err != nil {
		panic(err)
	}

	/* Pipeline layout with one combined image sampler binding. */
	setLayout, err := dev.CreateDescriptorSetLayout([]vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}})
	if err != nil {
		panic(err)
	}
	layout, err := dev.CreatePipelineLayout([]vk.DescriptorSetLayout{setLayout})
	if err != nil {
		panic(err)
	}

	/* Task runtime and pipeline generation. */
	pool := task.NewPool(runtime.NumCPU())
	defer pool.Shutdown()

	stateDir, err := core.StateDir()
	if err != nil {
		panic(err)
	}
	broker := pipeline.NewCacheBroker(pool, stateDir)

	vertex, textured, flat := loadShaders(configuration.Renderer, dev.Handle())
	permutations, err := core.StagePermutations([][]*core.VulkanShader{
		{vertex, textured},
		{vertex, flat},
	})
	if err != nil {
		panic(err)
	}

	blendModes := []vk.PipelineColorBlendAttachmentState{
		{
			ColorWriteMask: 0xF,
			BlendEnable:    vk.False,
		},
		{
			ColorWriteMask:      0xF,
			BlendEnable:         vk.True,
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
		},
	}

	factory := pipeline.NewFactory(window, broker, 0, layout, forward.Handle())
	factory.Add(pipeline.NewVertexInputCharacteristic(
		model.VertexBindingDescriptions(), model.VertexAttributeDescriptions()))
	factory.Add(pipeline.NewShaderStageCharacteristic(permutations))
	factory.Add(pipeline.NewBlendModeCharacteristic(blendModes))
	factoryTask := factory.Run(pool)
	factory.Generate()

	updater := descriptor.NewUpdater(dev, &descriptor.Texture{Name: "loading"})
	updater.Run(pool)
	defer updater.Terminate()

	time := core.NewTime(configuration.Time)
	defer time.Stop()
	exitC := make(chan struct{}, 2)
	factoryDone := factoryTask.Done()

EventLoop:
	for {
		select {
		case <-exitC:
			log.Info("event loop exited")
			break EventLoop
		case <-factoryDone:
			if err := factoryTask.Err(); err != nil {
				log.WithError(err).Error("pipeline generation failed")
			} else {
				log.WithField("pipelines", len(factory.Pipelines())).Info("pipeline generation finished")
			}
			factoryDone = nil
		case <-time.FpsTicker().C:
			window.Frame()
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						exitC <- struct{}{}
						continue EventLoop
					}
				case *sdl.QuitEvent:
					exitC <- struct{}{}
					continue EventLoop
				}
			}
		}
	}

	/* Persist the pipeline cache before tearing anything down. */
	if cache := factory.Cache(); cache != nil {
		broker.FlushAll()
		<-cache.Task().Done()
	}
	dev.WaitIdle()
}
