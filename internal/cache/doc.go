// Package cache provides an in-memory cache of recently read, already
// decrypted and decompressed chunk payloads.
//
// The chunk pipeline's read path decrypts and decompresses every chunk it
// gathers. Repeated downloads of the same (file, version) within a short
// window, common for hot files, would otherwise pay that cost every time.
// ChunkCache sits in front of the pipeline's per-chunk read and is purely an
// accelerator: a miss always falls back to disk, so correctness never depends
// on what is or isn't cached.
package cache
