// Package download turns catalog files into ranged CDN fetch plans and
// executes them.
//
// Planning and execution are split: a FilePlan is a pure value describing
// which compressed byte ranges to pull from which bundles and where each
// chunk's plaintext lands in the reconstructed file, while the Downloader
// executes plans against a CDN with retries, optional range caching, and a
// bounded worker pool for whole-manifest runs.
package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/questline/rman/internal/pool"
	"github.com/questline/rman/manifest"
	"github.com/questline/rman/section"
)

// ChunkPlan is one chunk to fetch, keyed in its BundlePlan by compressed
// offset. Targets is the scatter set: every uncompressed offset in the
// output file that receives this chunk's plaintext. Distinct file positions
// referencing the same content-chunk land as multiple targets, so the chunk
// is fetched and decompressed once.
type ChunkPlan struct {
	SizeCompressed   uint32
	SizeUncompressed uint32
	Targets          map[uint32]struct{}
}

// BundlePlan collects the chunks wanted from a single bundle.
type BundlePlan struct {
	// Name is the CDN object name: the uppercase 16-hex-digit bundle id plus
	// the bundle suffix.
	Name   string
	Chunks map[uint32]*ChunkPlan
}

// FilePlan is the complete fetch plan for one file.
type FilePlan struct {
	Name            string
	Size            uint32
	MaxUncompressed uint32
	Bundles         map[uint64]*BundlePlan
}

// BundleName renders the CDN object name of a bundle id.
func BundleName(id uint64) string {
	return fmt.Sprintf("%016X%s", id, section.BundleSuffix)
}

// Plan builds a fetch plan from the file's chunks that keep reports true.
func Plan(f *manifest.File, keep func(*manifest.Chunk) bool) *FilePlan {
	plan := &FilePlan{
		Name:            f.Name,
		Size:            f.Size,
		MaxUncompressed: f.MaxUncompressed,
		Bundles:         make(map[uint64]*BundlePlan),
	}

	for i := range f.Chunks {
		chunk := &f.Chunks[i]
		if !keep(chunk) {
			continue
		}

		bundle, ok := plan.Bundles[chunk.BundleID]
		if !ok {
			bundle = &BundlePlan{
				Name:   BundleName(chunk.BundleID),
				Chunks: make(map[uint32]*ChunkPlan),
			}
			plan.Bundles[chunk.BundleID] = bundle
		}

		cp, ok := bundle.Chunks[chunk.OffsetCompressed]
		if !ok {
			cp = &ChunkPlan{
				SizeCompressed:   chunk.SizeCompressed,
				SizeUncompressed: chunk.SizeUncompressed,
				Targets:          make(map[uint32]struct{}),
			}
			bundle.Chunks[chunk.OffsetCompressed] = cp
		}
		cp.Targets[chunk.OffsetUncompressed] = struct{}{}
	}

	return plan
}

// PlanAll builds a plan fetching every chunk of the file.
func PlanAll(f *manifest.File) *FilePlan {
	return Plan(f, func(*manifest.Chunk) bool { return true })
}

// PlanChecked builds a plan fetching only the chunks whose on-disk span in r
// does not already hash to the chunk id. Read or seek failures keep the
// chunk in the plan rather than failing; the next attempt re-plans.
func PlanChecked(f *manifest.File, r io.ReadSeeker) *FilePlan {
	buf := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(buf)

	return Plan(f, func(chunk *manifest.Chunk) bool {
		if _, err := r.Seek(int64(chunk.OffsetUncompressed), io.SeekStart); err != nil {
			return true
		}

		b := buf.Resize(int(chunk.SizeUncompressed))
		if _, err := io.ReadFull(r, b); err != nil {
			return true
		}

		return f.HashChunk(b) != chunk.ID
	})
}

// PlanCheckedInDir diffs the file against its copy below dir; a missing or
// unopenable copy falls back to fetching everything.
func PlanCheckedInDir(f *manifest.File, dir string) *FilePlan {
	fp, err := os.Open(filepath.Join(dir, f.Name))
	if err != nil {
		return PlanAll(f)
	}
	defer fp.Close()

	return PlanChecked(f, fp)
}

// Range returns the half-open compressed byte range covering the planned
// chunks: from the first chunk's offset to the end of the last. An empty
// plan yields [0, 0).
func (b *BundlePlan) Range() (start, end uint32) {
	offsets := b.sortedOffsets()
	if len(offsets) == 0 {
		return 0, 0
	}

	first := offsets[0]
	last := offsets[len(offsets)-1]

	return first, last + b.Chunks[last].SizeCompressed
}

// sortedOffsets returns the chunk keys in increasing compressed offset
// order, the order chunks are laid out inside the bundle.
func (b *BundlePlan) sortedOffsets() []uint32 {
	offsets := make([]uint32, 0, len(b.Chunks))
	for off := range b.Chunks {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	return offsets
}

// sortedBundleIDs returns the plan's bundle ids in increasing order for
// deterministic execution.
func (p *FilePlan) sortedBundleIDs() []uint64 {
	ids := make([]uint64, 0, len(p.Bundles))
	for id := range p.Bundles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// TotalSize returns the total compressed bytes the plan will fetch,
// summed over every bundle's range.
func (p *FilePlan) TotalSize() uint32 {
	var total uint64
	for _, bundle := range p.Bundles {
		start, end := bundle.Range()
		total += uint64(end - start)
	}

	return uint32(total)
}

// Empty reports whether the plan has nothing to fetch.
func (p *FilePlan) Empty() bool {
	return len(p.Bundles) == 0
}
