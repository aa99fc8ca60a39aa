// Package gpgpu advances simulation state on the GPU. State lives in square RGBA32Float
// textures that are read by a compute pass and written into a second texture, then
// swapped, so every pass reads the previous frame and writes the next one.
package gpgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// DefaultWorkgroupSize is the workgroup edge used when a compute shader declares none.
const DefaultWorkgroupSize = 8

var (
	// ErrNotInitialized is returned by Compute before Init succeeded.
	ErrNotInitialized = errors.New("computation renderer is not initialized")
	// ErrInitialized is returned when variables change after Init.
	ErrInitialized = errors.New("computation renderer is already initialized")
	// ErrUnknownVariable is returned for a variable created by another renderer.
	ErrUnknownVariable = errors.New("unknown variable")
)

var variableCount atomic.Uint64

// Variable is one named quantity stored in a ping-pong pair of state textures.
type Variable interface {
	// ID returns the unique variable ID.
	ID() uint64

	// Name returns the variable name. Dependent variables read it as a float texture
	// uniform of the same name.
	Name() string

	// Material returns the compute material built by Init, or nil before then.
	Material() material.Material

	// Dependencies returns the variables this one reads, in binding order.
	Dependencies() []Variable
}

type variable struct {
	id      uint64
	name    string
	shader  shader.Shader
	initial []float32
	options []material.MaterialBuilderOption

	deps     []*variable
	material material.Material
	targets  [2]texture.Texture
}

var _ Variable = &variable{}

func (v *variable) ID() uint64 {
	return v.id
}

func (v *variable) Name() string {
	return v.name
}

func (v *variable) Material() material.Material {
	return v.material
}

func (v *variable) Dependencies() []Variable {
	out := make([]Variable, len(v.deps))
	for i, d := range v.deps {
		out[i] = d
	}
	return out
}

type computationRenderer struct {
	mu *sync.Mutex

	size      int
	renderer  renderer.Renderer
	variables []*variable
	current   int
	ready     bool
	passes    uint64
}

// ComputationRenderer runs a set of compute variables over S×S state textures.
type ComputationRenderer interface {
	// Size returns the side length S of every state texture.
	Size() int

	// CreateTexture returns a zeroed RGBA buffer of S×S texels for initial data.
	CreateTexture() []float32

	// AddVariable declares a variable. The shader writes the variable's next state; the
	// options declare its extra uniforms, which are bound after the dependency textures.
	//
	// Parameters:
	//   - name: the variable name
	//   - compute: the compute shader advancing the variable
	//   - initial: S×S×4 floats uploaded to both state textures, nil for zeros
	//   - options: material options declaring the variable's other uniforms
	//
	// Returns:
	//   - Variable: the new variable
	//   - error: an error if called after Init, the shader is not a compute shader or the
	//     initial data has the wrong length
	AddVariable(name string, compute shader.Shader, initial []float32, options ...material.MaterialBuilderOption) (Variable, error)

	// SetVariableDependencies replaces the variables read by v. A variable may depend on
	// itself.
	//
	// Parameters:
	//   - v: the variable
	//   - deps: the variables it reads
	//
	// Returns:
	//   - error: ErrInitialized after Init, ErrUnknownVariable for foreign variables
	SetVariableDependencies(v Variable, deps ...Variable) error

	// Init creates the state textures and compute materials of every variable.
	//
	// Returns:
	//   - error: an error if a texture or material could not be created
	Init() error

	// Compute advances every variable once. Each variable reads the current textures of
	// its dependencies and writes its alternate texture; the swap happens after all of
	// them ran.
	//
	// Returns:
	//   - error: ErrNotInitialized before Init, or the first dispatch error
	Compute() error

	// CurrentTexture returns the texture holding the latest state of v.
	CurrentTexture(v Variable) texture.Texture

	// AlternateTexture returns the texture the next Compute writes for v.
	AlternateTexture(v Variable) texture.Texture

	// Passes returns the number of completed Compute calls.
	Passes() uint64

	// Release frees the state textures.
	Release()
}

var _ ComputationRenderer = &computationRenderer{}

// NewComputationRenderer creates a computation renderer for S×S state.
//
// Parameters:
//   - size: the texture side length, clamped to at least 1
//   - r: the renderer that creates textures and runs dispatches
//
// Returns:
//   - ComputationRenderer: the new computation renderer
func NewComputationRenderer(size int, r renderer.Renderer) ComputationRenderer {
	return &computationRenderer{
		mu:       &sync.Mutex{},
		size:     max(size, 1),
		renderer: r,
	}
}

func (c *computationRenderer) Size() int {
	return c.size
}

func (c *computationRenderer) CreateTexture() []float32 {
	return make([]float32, c.size*c.size*4)
}

func (c *computationRenderer) AddVariable(name string, compute shader.Shader, initial []float32, options ...material.MaterialBuilderOption) (Variable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil, ErrInitialized
	}
	if compute == nil || compute.ShaderType() != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("variable %q requires a compute shader", name)
	}
	if initial == nil {
		initial = c.CreateTexture()
	}
	if want := c.size * c.size * 4; len(initial) != want {
		return nil, fmt.Errorf("variable %q: initial data has %d floats, want %d", name, len(initial), want)
	}

	v := &variable{
		id:      variableCount.Add(1),
		name:    name,
		shader:  compute,
		initial: initial,
		options: options,
	}
	c.variables = append(c.variables, v)
	return v, nil
}

func (c *computationRenderer) SetVariableDependencies(v Variable, deps ...Variable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return ErrInitialized
	}
	target, err := c.lookupLocked(v)
	if err != nil {
		return err
	}
	resolved := make([]*variable, 0, len(deps))
	for _, d := range deps {
		dv, err := c.lookupLocked(d)
		if err != nil {
			return err
		}
		resolved = append(resolved, dv)
	}
	target.deps = resolved
	return nil
}

func (c *computationRenderer) lookupLocked(v Variable) (*variable, error) {
	if v == nil {
		return nil, ErrUnknownVariable
	}
	for _, own := range c.variables {
		if own.id == v.ID() {
			return own, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownVariable, v.Name())
}

func (c *computationRenderer) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return ErrInitialized
	}
	for _, v := range c.variables {
		data := common.SliceToBytes(v.initial)
		for i := range v.targets {
			tex, err := c.renderer.NewTexture(texture.Descriptor{
				Label:     fmt.Sprintf("%s %d", v.name, i),
				Width:     c.size,
				Height:    c.size,
				Format:    texture.FormatRGBA32Float,
				MinFilter: texture.FilterNearest,
				MagFilter: texture.FilterNearest,
				Usage:     texture.UsageSampled | texture.UsageStorage | texture.UsageUpload,
			}, data)
			if err != nil {
				return fmt.Errorf("variable %q: %w", v.name, err)
			}
			v.targets[i] = tex
		}
	}

	// dependency textures come first so their bindings follow the uniform block
	for _, v := range c.variables {
		options := make([]material.MaterialBuilderOption, 0, len(v.deps)+len(v.options))
		for _, d := range v.deps {
			options = append(options, material.WithFloatTexture(d.name, d.targets[0]))
		}
		options = append(options, v.options...)
		m, err := material.NewComputeMaterial(v.name, v.shader, options...)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.name, err)
		}
		v.material = m
	}

	c.current = 0
	c.ready = true
	logger.Logger().Debug("computation renderer initialized", "size", c.size, "variables", len(c.variables))
	return nil
}

func (c *computationRenderer) Compute() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrNotInitialized
	}
	next := 1 - c.current
	for _, v := range c.variables {
		for _, d := range v.deps {
			if err := v.material.SetUniform(d.name, d.targets[c.current]); err != nil {
				return err
			}
		}
		if err := c.renderer.Compute(v.material, v.targets[next], c.workgroups(v)); err != nil {
			return fmt.Errorf("variable %q: %w", v.name, err)
		}
	}
	c.current = next
	c.passes++
	return nil
}

func (c *computationRenderer) workgroups(v *variable) [3]uint32 {
	wg := v.shader.WorkgroupSize()
	x, y := int(wg[0]), int(wg[1])
	if x <= 1 && y <= 1 {
		x, y = DefaultWorkgroupSize, DefaultWorkgroupSize
	}
	return [3]uint32{
		uint32((c.size + x - 1) / x),
		uint32((c.size + y - 1) / y),
		1,
	}
}

func (c *computationRenderer) CurrentTexture(v Variable) texture.Texture {
	return c.target(v, false)
}

func (c *computationRenderer) AlternateTexture(v Variable) texture.Texture {
	return c.target(v, true)
}

func (c *computationRenderer) target(v Variable, alternate bool) texture.Texture {
	c.mu.Lock()
	defer c.mu.Unlock()
	own, err := c.lookupLocked(v)
	if err != nil {
		return nil
	}
	i := c.current
	if alternate {
		i = 1 - i
	}
	return own.targets[i]
}

func (c *computationRenderer) Passes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes
}

func (c *computationRenderer) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.variables {
		for i, tex := range v.targets {
			if tex != nil {
				tex.Release()
				v.targets[i] = nil
			}
		}
	}
	c.ready = false
}
