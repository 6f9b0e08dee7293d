// Package atlas packs many small textures, typically glyph masks and
// decoded images, into growable GPU texture arrays.
//
// A LayeredAtlas splits large sources into fixed-size tiles, packs each
// tile into the first texture array layer with room, and grows on
// demand: first by adding layers, then by doubling the layer size, up
// to the device limits. Allocations are cached under comparable keys
// and reference counted; space is reclaimed by an explicit Deallocate
// sweep once all holders have released.
//
// Allocated textures render as quad meshes built by ToMesh, one quad
// per tile, with UV coordinates into the atlas texture. The atlas talks
// to the GPU through the small gpucore.Device interface; backend/native
// implements it over wgpu and backend/software provides an in-memory
// device for tests and headless use.
package atlas
