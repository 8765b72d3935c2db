package download

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jpillora/backoff"

	"github.com/questline/rman/compress"
	"github.com/questline/rman/errs"
	"github.com/questline/rman/format"
	"github.com/questline/rman/internal/options"
	"github.com/questline/rman/internal/pool"
)

// Getter is the opaque HTTP primitive the executor runs on: a GET with
// request headers. The default implementation wraps net/http; tests and
// embedders substitute their own.
//
// Clone hands each worker its own default net/http Getter; a custom Getter
// is shared by all clones, so it may be called from several workers at once.
type Getter interface {
	Get(url string, header http.Header) (*http.Response, error)
}

type httpGetter struct {
	client *http.Client
}

func (g *httpGetter) Get(url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	return g.client.Do(req)
}

// Downloader executes file plans against a CDN.
//
// The zero-value configuration (NewDownloader with no options) uses its own
// http.Client, three attempts per range with exponential backoff, and no
// range cache.
type Downloader struct {
	getter   Getter
	chunks   compress.Decompressor
	cache    *BundleCache
	retries  int
	retryMin time.Duration
	retryMax time.Duration
}

// Option configures a Downloader.
type Option = options.Option[*Downloader]

// WithClient runs the downloader on the given http.Client.
func WithClient(client *http.Client) Option {
	return options.NoError(func(d *Downloader) {
		d.getter = &httpGetter{client: client}
	})
}

// WithGetter substitutes the HTTP primitive entirely.
func WithGetter(g Getter) Option {
	return options.NoError(func(d *Downloader) {
		d.getter = g
	})
}

// WithRetries sets the attempt count per range request.
func WithRetries(n int) Option {
	return options.New(func(d *Downloader) error {
		if n < 1 {
			return fmt.Errorf("retries must be at least 1, got %d", n)
		}
		d.retries = n

		return nil
	})
}

// WithRetryWait bounds the backoff between attempts.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return options.New(func(d *Downloader) error {
		if minWait <= 0 || maxWait < minWait {
			return fmt.Errorf("invalid retry wait bounds [%s, %s]", minWait, maxWait)
		}
		d.retryMin = minWait
		d.retryMax = maxWait

		return nil
	})
}

// WithCache stores fetched bundle ranges in the given cache and consults it
// before hitting the network.
func WithCache(cache *BundleCache) Option {
	return options.NoError(func(d *Downloader) {
		d.cache = cache
	})
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...Option) (*Downloader, error) {
	chunks, err := compress.GetCodec(format.CompressionZstd)
	if err != nil {
		return nil, err
	}

	d := &Downloader{
		chunks:   chunks,
		retries:  3,
		retryMin: 200 * time.Millisecond,
		retryMax: 5 * time.Second,
	}
	if err := options.Apply(d, opts...); err != nil {
		return nil, err
	}
	if d.getter == nil {
		d.getter = &httpGetter{client: &http.Client{}}
	}

	return d, nil
}

// Clone returns a downloader with the same configuration but its own HTTP
// handle, for use on another worker. Custom Getters are shared as-is; their
// owner decides their concurrency story.
func (d *Downloader) Clone() *Downloader {
	clone := *d
	if _, ok := d.getter.(*httpGetter); ok {
		clone.getter = &httpGetter{client: &http.Client{}}
	}

	return &clone
}

// fetchRange returns exactly end-start bytes of the named object, consulting
// the cache first and retrying transient network failures with backoff. The
// returned slice may alias buf.
func (d *Downloader) fetchRange(url, name string, start, end uint32, buf *pool.ByteBuffer) ([]byte, error) {
	if d.cache != nil {
		if data, ok := d.cache.Load(name, start, end); ok {
			return data, nil
		}
	}

	boff := &backoff.Backoff{
		Min:    d.retryMin,
		Max:    d.retryMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(boff.Duration())
		}

		data, retryable, err := d.fetchRangeOnce(url, start, end, buf)
		if err == nil {
			if d.cache != nil {
				d.cache.Store(name, start, end, data)
			}

			return data, nil
		}

		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, lastErr
}

// fetchRangeOnce performs one ranged GET. Network errors, short bodies and
// 5xx statuses are retryable; other statuses are not.
func (d *Downloader) fetchRangeOnce(url string, start, end uint32, buf *pool.ByteBuffer) (data []byte, retryable bool, err error) {
	header := make(http.Header)
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))

	resp, err := d.getter.Get(url, header)
	if err != nil {
		return nil, true, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, fmt.Errorf("%w: %s for %s", errs.ErrRangeStatus, resp.Status, url)
	}

	data = buf.Resize(int(end - start))
	if _, err := io.ReadFull(resp.Body, data); err != nil {
		return nil, true, fmt.Errorf("failed to read range body: %w", err)
	}

	return data, false, nil
}

// writeChunk decompresses one planned chunk and writes the plaintext at
// every scatter target.
func (d *Downloader) writeChunk(c *ChunkPlan, src []byte, w io.WriteSeeker) error {
	if len(src) < int(c.SizeCompressed) {
		return errs.ErrShortBundleData
	}

	plain, err := d.chunks.Decompress(src[:c.SizeCompressed])
	if err != nil {
		return fmt.Errorf("failed to decompress chunk: %w", err)
	}

	for _, target := range sortedTargets(c.Targets) {
		if _, err := w.Seek(int64(target), io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to chunk target: %w", err)
		}
		if _, err := w.Write(plain); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}
	}

	return nil
}

func sortedTargets(targets map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(targets))
	for t := range targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Bundle fetches one bundle's planned range and scatters its chunks into w.
// It returns the number of compressed bytes fetched.
func (d *Downloader) Bundle(b *BundlePlan, cdn string, w io.WriteSeeker) (uint32, error) {
	start, end := b.Range()
	if end == start {
		return 0, nil
	}

	buf := pool.GetRangeBuffer()
	defer pool.PutRangeBuffer(buf)

	data, err := d.fetchRange(cdn+"/"+b.Name, b.Name, start, end, buf)
	if err != nil {
		return 0, err
	}

	for _, off := range b.sortedOffsets() {
		if err := d.writeChunk(b.Chunks[off], data[off-start:], w); err != nil {
			return 0, fmt.Errorf("chunk at offset %d: %w", off, err)
		}
	}

	return end - start, nil
}

// File executes the whole plan into w. Bundles run in id order; chunk writes
// are absolute-positioned so the order is not semantically significant.
// progress, if non-nil, receives the compressed bytes fetched per bundle.
func (d *Downloader) File(p *FilePlan, cdn string, w io.WriteSeeker, progress func(uint32)) error {
	for _, id := range p.sortedBundleIDs() {
		bundle := p.Bundles[id]
		n, err := d.Bundle(bundle, cdn, w)
		if err != nil {
			return fmt.Errorf("bundle %s: %w", bundle.Name, err)
		}
		if progress != nil {
			progress(n)
		}
	}

	return nil
}

// FileToDir reconstructs the planned file below dir: parents are created,
// the file is opened without truncation so skipped chunks keep their bytes,
// and after every bundle lands the file is cut to its declared size to drop
// any stale tail.
func (d *Downloader) FileToDir(p *FilePlan, cdn, dir string, progress func(uint32)) error {
	path := filepath.Join(dir, p.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create file dirs: %w", err)
	}

	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := d.File(p, cdn, fp, progress); err != nil {
		fp.Close()

		return err
	}

	if err := fp.Truncate(int64(p.Size)); err != nil {
		fp.Close()

		return fmt.Errorf("failed to set file length: %w", err)
	}

	return fp.Close()
}
