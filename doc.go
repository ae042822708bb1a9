// Package marlin is the render core of a non-linear video editor.
//
// # Overview
//
// marlin turns a timeline position into a composited video frame or audio
// buffer. It combines a node-based compositing graph, a decoder abstraction,
// a color management service, a GPU texture/pipeline layer built on
// gogpu/wgpu, and render backends that cache output keyed by content
// identity.
//
// # Architecture
//
// The library is organized into:
//   - rational: exact rational time and half-open TimeRange arithmetic
//   - media: frames, pixel formats, audio buffers, rendering parameters
//   - footage: media items and their decodable stream references
//   - decoder: the decoder capability interface and registry
//   - colorspace: source-to-reference color transforms (CPU and GPU paths)
//   - gpu: texture lifecycle and blit pipelines over an adapter interface
//   - node: the compositing graph and its pull-based evaluation
//   - render: video/audio backends, content hashing, output cache
//
// Control flow: a render backend receives a time and an output node, asks the
// node graph to evaluate, and the graph recursively resolves inputs, invoking
// decoders and the color service as needed, producing GPU textures through
// the texture layer. Results are cached by the backend keyed by a hash of the
// contributing node state.
//
// The GUI widget layer, project serialization, and real codec backends are
// external collaborators; they call into this core through time queries,
// cache invalidation signals, and the decoder registry.
package marlin

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
