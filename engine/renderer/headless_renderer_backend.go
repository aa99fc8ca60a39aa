package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// headlessTexture is the handle the headless backend attaches to a texture.
type headlessTexture struct {
	width, height int
	version       uint64
	uploads       int
}

// headlessRendererBackend validates and counts work without touching a GPU, so the
// whole frame pipeline can run in tests and on machines without a display.
type headlessRendererBackend struct {
	mu *sync.Mutex

	width, height int
	presentMode   PresentMode
	sampleCount   uint32

	pipelines      int
	textureUploads int
	drawCalls      int
	frameDrawn     bool
	released       bool
}

var _ RendererBackend = &headlessRendererBackend{}

func newHeadlessRendererBackend(sampleCount MSAASampleCount) *headlessRendererBackend {
	return &headlessRendererBackend{
		mu:          &sync.Mutex{},
		sampleCount: max(uint32(sampleCount), 1),
	}
}

func (b *headlessRendererBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	b.width, b.height = width, height
	return nil
}

func (b *headlessRendererBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *headlessRendererBackend) SurfaceFormat() texture.Format {
	return texture.FormatBGRA8UnormSrgb
}

func (b *headlessRendererBackend) SampleCount() uint32 {
	return b.sampleCount
}

func (b *headlessRendererBackend) PrepareTexture(tex texture.Texture) error {
	if tex == nil {
		return errors.New("nil texture")
	}
	if tex.Released() {
		return fmt.Errorf("texture %q has been released", tex.Label())
	}

	handle, _ := tex.Handle().(*headlessTexture)
	if handle == nil {
		handle = &headlessTexture{}
		tex.SetHandle(handle, nil)
	}
	desc := tex.Descriptor()
	if handle.width != desc.Width || handle.height != desc.Height || handle.version != tex.Version() {
		handle.width, handle.height = desc.Width, desc.Height
		handle.version = tex.Version()
		if tex.Data() != nil {
			handle.uploads++
			b.mu.Lock()
			b.textureUploads++
			b.mu.Unlock()
		}
	}
	return nil
}

func (b *headlessRendererBackend) PreparePipeline(p pipeline.Pipeline) error {
	if p.Handle() != nil {
		return nil
	}
	switch p.Type() {
	case pipeline.PipelineTypeRender:
		if p.Shader(shader.ShaderTypeVertex) == nil || p.Shader(shader.ShaderTypeFragment) == nil {
			return fmt.Errorf("pipeline %s: both vertex and fragment shaders must be set", p.PipelineKey())
		}
	case pipeline.PipelineTypeCompute:
		if p.Shader(shader.ShaderTypeCompute) == nil {
			return fmt.Errorf("pipeline %s: compute shader must be set", p.PipelineKey())
		}
	}
	p.SetHandle(p.PipelineKey(), nil)

	b.mu.Lock()
	b.pipelines++
	b.mu.Unlock()
	logger.Logger().Debug("headless pipeline prepared", "key", p.PipelineKey())
	return nil
}

func (b *headlessRendererBackend) ExecutePass(pass RenderPass) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pass.Target == nil {
		if b.width == 0 || b.height == 0 {
			return errors.New("surface is not configured")
		}
		b.frameDrawn = true
	} else if pass.Target.Released() {
		return fmt.Errorf("render target %q has been released", pass.Target.Label())
	}

	for _, draw := range pass.Draws {
		if draw.Pipeline == nil || draw.Pipeline.Handle() == nil {
			return fmt.Errorf("pass %q: draw of %q has no prepared pipeline", pass.Label, draw.Material.Label())
		}
		for binding, tex := range draw.Textures {
			if tex == nil || tex.Handle() == nil {
				return fmt.Errorf("pass %q: binding %d of %q has no prepared texture", pass.Label, binding, draw.Material.Label())
			}
		}
		b.drawCalls++
	}
	return nil
}

func (b *headlessRendererBackend) ExecuteCompute(cmd ComputeCommand) error {
	if cmd.Pipeline == nil || cmd.Pipeline.Handle() == nil {
		return fmt.Errorf("compute %q has no prepared pipeline", cmd.Label)
	}
	if cmd.Output == nil || cmd.Output.Handle() == nil {
		return fmt.Errorf("compute %q has no prepared output", cmd.Label)
	}
	for binding, tex := range cmd.Textures {
		if tex == nil || tex.Handle() == nil {
			return fmt.Errorf("compute %q: binding %d has no prepared texture", cmd.Label, binding)
		}
	}
	if cmd.Workgroups[0] == 0 || cmd.Workgroups[1] == 0 || cmd.Workgroups[2] == 0 {
		return fmt.Errorf("compute %q dispatches no workgroups", cmd.Label)
	}
	return nil
}

func (b *headlessRendererBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameDrawn = false
	return nil
}

func (b *headlessRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}
