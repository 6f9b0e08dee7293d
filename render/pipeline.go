//go:build !nogpu

// Package render draws atlas-backed quad meshes with a wgpu render
// pipeline. It owns the shader, pipeline, and sampler, and rebuilds
// its bind group whenever the atlas texture is replaced by growth.
package render

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/atlas"
)

//go:embed shaders/atlas_quad.wgsl
var quadShaderSource string

// Vertex layout: position vec2 (8 bytes), layer u32 (4), uv vec2 (8).
const quadVertexStride = 20

const quadUniformSize = 16*4 + 4*4 + 4*4

// QuadUniforms is the uniform block for the quad shader. Transform is
// column-major, mapping mesh coordinates to clip space. Mode selects
// mask tinting (0) or full color sampling (1).
type QuadUniforms struct {
	Transform [16]float32
	Color     [4]float32
	Mode      float32
}

// QuadPipeline renders TextureMesh geometry sampled from a layered
// atlas texture array. Not safe for concurrent use.
type QuadPipeline struct {
	device hal.Device
	queue  hal.Queue

	shader      hal.ShaderModule
	bindLayout  hal.BindGroupLayout
	pipeLayout  hal.PipelineLayout
	sampler     hal.Sampler
	pipeline    hal.RenderPipeline
	bindGroup   hal.BindGroup
	uniformBuf  hal.Buffer
	vertBuf     hal.Buffer
	idxBuf      hal.Buffer
	indexCount  uint32
	vertBufSize uint64
	idxBufSize  uint64
}

// NewQuadPipeline compiles the quad shader and builds the render
// pipeline targeting the given color format.
func NewQuadPipeline(device hal.Device, queue hal.Queue, targetFormat gputypes.TextureFormat) (*QuadPipeline, error) {
	p := &QuadPipeline{device: device, queue: queue}
	if err := p.createPipeline(targetFormat); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// compileSPIRV compiles WGSL to SPIR-V words, little-endian.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("render: compile shader: %w", err)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

func (p *QuadPipeline) createPipeline(targetFormat gputypes.TextureFormat) error {
	spirv, err := compileSPIRV(quadShaderSource)
	if err != nil {
		return err
	}
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "atlas_quad_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("render: create shader module: %w", err)
	}
	p.shader = shader

	// Binding 0: QuadUniforms (vertex+fragment)
	// Binding 1: atlas texture array (fragment)
	// Binding 2: sampler (fragment)
	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "atlas_quad_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("render: create bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "atlas_quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("render: create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "atlas_quad_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("render: create sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "atlas_quad_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    targetFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("render: create pipeline: %w", err)
	}
	p.pipeline = pipeline

	uniformBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "atlas_quad_uniforms",
		Size:  quadUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("render: create uniform buffer: %w", err)
	}
	p.uniformBuf = uniformBuf

	return nil
}

// quadVertexLayout matches VertexInput in atlas_quad.wgsl:
//
//	location 0: position (vec2<f32>)
//	location 1: layer (u32)
//	location 2: uv (vec2<f32>)
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUint32, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 2},
			},
		},
	}
}

// SetUniforms uploads the uniform block.
func (p *QuadPipeline) SetUniforms(u QuadUniforms) {
	data := make([]byte, quadUniformSize)
	off := 0
	for _, f := range u.Transform {
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(f))
		off += 4
	}
	for _, f := range u.Color {
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(f))
		off += 4
	}
	binary.LittleEndian.PutUint32(data[off:], math.Float32bits(u.Mode))
	p.queue.WriteBuffer(p.uniformBuf, 0, data)
}

// packVertices serializes mesh vertices to the interleaved layout the
// pipeline expects.
func packVertices(mesh *atlas.TextureMesh) []byte {
	data := make([]byte, len(mesh.Vertices)*quadVertexStride)
	off := 0
	for _, v := range mesh.Vertices {
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(v.Position[0]))
		binary.LittleEndian.PutUint32(data[off+4:], math.Float32bits(v.Position[1]))
		binary.LittleEndian.PutUint32(data[off+8:], v.Layer)
		binary.LittleEndian.PutUint32(data[off+12:], math.Float32bits(v.UV[0]))
		binary.LittleEndian.PutUint32(data[off+16:], math.Float32bits(v.UV[1]))
		off += quadVertexStride
	}
	return data
}

func packIndices(mesh *atlas.TextureMesh) []byte {
	data := make([]byte, len(mesh.Indices)*4)
	for i, idx := range mesh.Indices {
		binary.LittleEndian.PutUint32(data[i*4:], idx)
	}
	return data
}

// UploadMesh uploads mesh geometry, reusing the vertex and index
// buffers when they are large enough.
func (p *QuadPipeline) UploadMesh(mesh *atlas.TextureMesh) error {
	if len(mesh.Indices) == 0 {
		p.indexCount = 0
		return nil
	}
	vertexData := packVertices(mesh)
	indexData := packIndices(mesh)

	if p.vertBuf == nil || uint64(len(vertexData)) > p.vertBufSize {
		if p.vertBuf != nil {
			p.device.DestroyBuffer(p.vertBuf)
		}
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "atlas_quad_verts",
			Size:  uint64(len(vertexData)),
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("render: create vertex buffer: %w", err)
		}
		p.vertBuf = buf
		p.vertBufSize = uint64(len(vertexData))
	}
	if p.idxBuf == nil || uint64(len(indexData)) > p.idxBufSize {
		if p.idxBuf != nil {
			p.device.DestroyBuffer(p.idxBuf)
		}
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "atlas_quad_indices",
			Size:  uint64(len(indexData)),
			Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("render: create index buffer: %w", err)
		}
		p.idxBuf = buf
		p.idxBufSize = uint64(len(indexData))
	}

	p.queue.WriteBuffer(p.vertBuf, 0, vertexData)
	p.queue.WriteBuffer(p.idxBuf, 0, indexData)
	p.indexCount = uint32(len(mesh.Indices))
	return nil
}

// Rebind builds the bind group against the given atlas texture view.
// Call after atlas growth, when NeedsRebinding reports true, then mark
// the atlas bound.
func (p *QuadPipeline) Rebind(view hal.TextureView) error {
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	bindGroup, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "atlas_quad_bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniformBuf.NativeHandle(), Offset: 0, Size: quadUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: view.NativeHandle(),
			}},
			{Binding: 2, Resource: gputypes.SamplerBinding{
				Sampler: p.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("render: create bind group: %w", err)
	}
	p.bindGroup = bindGroup
	return nil
}

// RecordDraws records the quad draw into an open render pass. No-op
// when there is no uploaded geometry or no bind group yet.
func (p *QuadPipeline) RecordDraws(rp hal.RenderPassEncoder) {
	if p.indexCount == 0 || p.bindGroup == nil {
		return
	}
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, p.vertBuf, 0)
	rp.SetIndexBuffer(p.idxBuf, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(p.indexCount, 1, 0, 0, 0)
}

// Destroy releases all GPU resources in reverse creation order. Safe
// to call more than once.
func (p *QuadPipeline) Destroy() {
	if p.device == nil {
		return
	}
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.idxBuf != nil {
		p.device.DestroyBuffer(p.idxBuf)
		p.idxBuf = nil
	}
	if p.vertBuf != nil {
		p.device.DestroyBuffer(p.vertBuf)
		p.vertBuf = nil
	}
	if p.uniformBuf != nil {
		p.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
