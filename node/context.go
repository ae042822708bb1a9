package node

import (
	"fmt"

	"github.com/marlinedit/marlin/colorspace"
	"github.com/marlinedit/marlin/decoder"
	"github.com/marlinedit/marlin/gpu"
	"github.com/marlinedit/marlin/media"
)

// RenderContext carries the mutable state a value query is allowed to
// touch. Evaluation looks pure but allocates and destroys GPU resources;
// passing the context explicitly keeps that visible in every signature.
//
// A context is bound to one adapter and one set of video parameters and is
// not safe for concurrent use. The render backend owns one per worker and
// reuses it across frames so per-node decoder and texture state persists.
type RenderContext struct {
	adapter gpu.Adapter
	params  media.VideoParams

	nodes     map[ID]*nodeState
	pipelines map[pipelineKey]gpu.PipelineID

	// passTextures are textures created since BeginPass. AbandonPass
	// destroys them; EndPass hands ownership of the survivors to the
	// caller.
	passTextures []*gpu.Texture
	inPass       bool
}

// nodeState is the per-node persistent state: the lazily-created decoder,
// the internal upload texture that tracks source frame geometry, and the
// color service for the node's source space.
type nodeState struct {
	decoderID string
	footageID string
	dec       decoder.Decoder

	audioDecoderID string
	audioFootageID string
	audioDec       decoder.Decoder

	internal *gpu.Texture

	colorSpace string
	color      *colorspace.Service
}

type pipelineKey struct {
	space  string
	mode   media.RenderMode
	format media.PixelFormat
}

// NewRenderContext binds a context to an adapter and video parameters.
func NewRenderContext(adapter gpu.Adapter, params media.VideoParams) *RenderContext {
	return &RenderContext{
		adapter:   adapter,
		params:    params,
		nodes:     make(map[ID]*nodeState),
		pipelines: make(map[pipelineKey]gpu.PipelineID),
	}
}

// Adapter returns the bound adapter.
func (c *RenderContext) Adapter() gpu.Adapter { return c.adapter }

// Params returns the bound video parameters.
func (c *RenderContext) Params() media.VideoParams { return c.params }

// SetParams rebinds the working parameters and drops state tied to the old
// ones: output pipelines and internal textures stay valid only while the
// working format holds.
func (c *RenderContext) SetParams(params media.VideoParams) {
	if c.params == params {
		return
	}
	c.params = params
	c.dropPipelines()
}

// BeginPass starts tracking textures created for one frame.
func (c *RenderContext) BeginPass() {
	c.passTextures = c.passTextures[:0]
	c.inPass = true
}

// EndPass stops tracking. Textures created during the pass stay alive; the
// caller owns the one it extracts from the returned value and must destroy
// the rest via DestroyPassTextures after reading the result back.
func (c *RenderContext) EndPass() {
	c.inPass = false
}

// AbandonPass destroys every texture created since BeginPass. Called when
// a render is cancelled mid-flight so partial resources do not leak.
func (c *RenderContext) AbandonPass() {
	for _, t := range c.passTextures {
		t.Destroy()
	}
	c.passTextures = c.passTextures[:0]
	c.inPass = false
}

// DestroyPassTextures destroys the pass's intermediate textures after the
// final output has been read back.
func (c *RenderContext) DestroyPassTextures() {
	for _, t := range c.passTextures {
		t.Destroy()
	}
	c.passTextures = c.passTextures[:0]
}

// newPassTexture creates a working-resolution texture tracked by the
// current pass.
func (c *RenderContext) newPassTexture() (*gpu.Texture, error) {
	t := gpu.NewTexture(c.adapter)
	if err := t.Create(c.params.Width, c.params.Height, c.params.Format, nil); err != nil {
		return nil, err
	}
	if err := t.Clear(); err != nil {
		t.Destroy()
		return nil, err
	}
	if c.inPass {
		c.passTextures = append(c.passTextures, t)
	}
	return t, nil
}

// state returns the persistent state bucket for a node.
func (c *RenderContext) state(id ID) *nodeState {
	s, ok := c.nodes[id]
	if !ok {
		s = &nodeState{}
		c.nodes[id] = s
	}
	return s
}

// pipeline returns the blit pipeline for a source space and render mode,
// creating it on first use. Online mode never bakes the color transform
// into the shader (the CPU already applied it), so all online requests
// share one identity pipeline per format.
func (c *RenderContext) pipeline(svc *colorspace.Service, mode media.RenderMode) (gpu.PipelineID, error) {
	key := pipelineKey{mode: mode, format: c.params.Format}
	var snippet string
	if mode == media.ModeOffline && svc != nil {
		var err error
		snippet, err = svc.ShaderSnippet()
		if err != nil {
			return gpu.InvalidID, err
		}
		key.space = svc.Space()
	}
	if id, ok := c.pipelines[key]; ok {
		return id, nil
	}
	id, err := c.adapter.CreatePipeline(gpu.PipelineDesc{
		Label:          fmt.Sprintf("blit_%s_%s", key.mode, c.params.Format),
		Format:         c.params.Format,
		ColorTransform: snippet,
	})
	if err != nil {
		return gpu.InvalidID, err
	}
	c.pipelines[key] = id
	return id, nil
}

func (c *RenderContext) dropPipelines() {
	for _, id := range c.pipelines {
		c.adapter.DestroyPipeline(id)
	}
	c.pipelines = make(map[pipelineKey]gpu.PipelineID)
	for _, s := range c.nodes {
		if s.internal != nil {
			s.internal.Destroy()
			s.internal = nil
		}
	}
}

// Close releases everything the context owns: per-node decoders and
// textures, cached pipelines, and any tracked pass textures.
func (c *RenderContext) Close() {
	c.AbandonPass()
	for _, s := range c.nodes {
		if s.dec != nil {
			s.dec.Close()
			s.dec = nil
		}
		if s.audioDec != nil {
			s.audioDec.Close()
			s.audioDec = nil
		}
		if s.internal != nil {
			s.internal.Destroy()
			s.internal = nil
		}
	}
	c.nodes = make(map[ID]*nodeState)
	for _, id := range c.pipelines {
		c.adapter.DestroyPipeline(id)
	}
	c.pipelines = make(map[pipelineKey]gpu.PipelineID)
}
