// Package rman reads game-client release manifests and reconstructs their
// files from content-addressed bundles on a CDN.
//
// A publisher ships a release as a binary manifest plus a set of bundles:
// each bundle concatenates Zstd-compressed chunks, and each chunk is named
// by a 64-bit truncated digest of its plaintext. The manifest's tables tie
// chunks to bundles and files to chunk sequences; this module decodes that
// container into an immutable catalog, plans the minimal ranged fetches to
// rebuild any file, and executes the plan with hash-checked skipping so
// reruns only pull what is missing.
//
// # Basic Usage
//
// Decoding a manifest and downloading everything:
//
//	import (
//	    "github.com/questline/rman"
//	    "github.com/questline/rman/download"
//	)
//
//	man, _ := rman.Fetch("https://cdn.example.com/releases/7.11.manifest")
//	dl, _ := download.NewDownloader()
//	err := dl.DownloadAll(man.Files, "https://cdn.example.com/bundles", "./install", 0, nil)
//
// Verifying an existing install without touching the network:
//
//	for i := range man.Files {
//	    if !man.Files[i].Verify("./install") {
//	        fmt.Println("damaged:", man.Files[i].Name)
//	    }
//	}
//
// # Package Structure
//
// This package provides top-level wrappers around the manifest package. The
// manifest package holds the decoder and catalog, download holds the range
// planner and executor, and compress/section/format carry the container's
// codecs, envelope and enums.
package rman

import (
	"net/http"

	"github.com/questline/rman/manifest"
)

// Re-exported catalog types; see the manifest package for details.
type (
	Manifest = manifest.Manifest
	File     = manifest.File
	Chunk    = manifest.Chunk
)

// Open decodes a manifest from a local file.
func Open(path string) (*Manifest, error) {
	return manifest.Open(path)
}

// Fetch loads a manifest from an HTTP/HTTPS URL or a local path, dispatching
// on the literal URL prefix.
func Fetch(url string) (*Manifest, error) {
	return manifest.Fetch(nil, url)
}

// FetchWith is Fetch with a caller-owned HTTP client.
func FetchWith(client *http.Client, url string) (*Manifest, error) {
	return manifest.Fetch(client, url)
}
