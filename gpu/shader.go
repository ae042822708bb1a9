package gpu

// blitShaderTemplate is the WGSL source of the blit pipeline. The %s slot
// receives a `fn to_linear(vec3<f32>) -> vec3<f32>` color transform; the
// identity transform is substituted when a pipeline carries none.
//
// The vertex stage emits a unit quad as two triangles and positions it with
// the uniform transform matrix. UVs flip Y so texture row 0 lands at the
// top of the destination.
const blitShaderTemplate = `struct BlitUniforms {
    transform: mat4x4<f32>,
    opacity: vec4<f32>,
};

@group(0) @binding(0) var<uniform> uniforms: BlitUniforms;
@group(0) @binding(1) var src_tex: texture_2d<f32>;
@group(0) @binding(2) var src_sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> VertexOutput {
    var corners = array<vec2<f32>, 6>(
        vec2<f32>(-1.0, -1.0),
        vec2<f32>( 1.0, -1.0),
        vec2<f32>( 1.0,  1.0),
        vec2<f32>(-1.0, -1.0),
        vec2<f32>( 1.0,  1.0),
        vec2<f32>(-1.0,  1.0),
    );
    let p = corners[vi];
    var out: VertexOutput;
    out.position = uniforms.transform * vec4<f32>(p, 0.0, 1.0);
    out.uv = vec2<f32>(p.x * 0.5 + 0.5, 0.5 - p.y * 0.5);
    return out;
}

%s

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let c = textureSample(src_tex, src_sampler, in.uv);
    return vec4<f32>(to_linear(c.rgb), c.a) * uniforms.opacity.x;
}
`

// identityColorTransform passes color through unchanged.
const identityColorTransform = `fn to_linear(c: vec3<f32>) -> vec3<f32> {
    return c;
}`
