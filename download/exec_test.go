package download_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/questline/rman/download"
	"github.com/questline/rman/errs"
	"github.com/questline/rman/format"
)

func newTestDownloader(t *testing.T, opts ...download.Option) *download.Downloader {
	t.Helper()

	opts = append([]download.Option{
		download.WithRetryWait(time.Millisecond, 2*time.Millisecond),
	}, opts...)
	d, err := download.NewDownloader(opts...)
	require.NoError(t, err)

	return d
}

func TestDownloadRoundTrip(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	d := newTestDownloader(t)

	for i := range rel.man.Files {
		f := &rel.man.Files[i]
		plan := download.PlanAll(f)

		var got uint32
		err := d.FileToDir(plan, c.server.URL, dir, func(n uint32) { got += n })
		require.NoError(t, err)
		require.Equal(t, plan.TotalSize(), got)
	}

	// Every reconstructed file hash-verifies and has the declared size.
	for i := range rel.man.Files {
		f := &rel.man.Files[i]
		require.True(t, f.Verify(dir), "file %q failed verification", f.Name)

		info, err := os.Stat(filepath.Join(dir, f.Name))
		require.NoError(t, err)
		require.Equal(t, int64(f.Size), info.Size())
	}

	// A second checked pass finds nothing to fetch.
	for i := range rel.man.Files {
		require.True(t, download.PlanCheckedInDir(&rel.man.Files[i], dir).Empty())
	}
}

func TestDownloadScatterWritesSharedChunk(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	d := newTestDownloader(t)

	f := fileByName(t, rel.man, "three.bin")
	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))

	data, err := os.ReadFile(filepath.Join(dir, f.Name))
	require.NoError(t, err)

	half := int(f.Chunks[0].SizeUncompressed)
	require.Equal(t, data[:half], data[half:])
	require.True(t, f.Verify(dir))

	// The shared chunk was fetched once: one bundle, one range request.
	require.EqualValues(t, 1, c.requests.Load())
}

func TestDownloadRepairsCorruptChunk(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	d := newTestDownloader(t)

	f := fileByName(t, rel.man, "one.bin")
	path := writeReleaseFile(t, rel, dir, f)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[f.Chunks[0].OffsetUncompressed] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.False(t, f.Verify(dir))

	plan := download.PlanCheckedInDir(f, dir)
	require.False(t, plan.Empty())
	// Only the damaged chunk is fetched, not the whole file.
	require.Less(t, plan.TotalSize(), download.PlanAll(f).TotalSize())

	require.NoError(t, d.FileToDir(plan, c.server.URL, dir, nil))
	require.True(t, f.Verify(dir))
}

func TestDownloadTruncatesStaleTail(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	d := newTestDownloader(t)

	f := fileByName(t, rel.man, "one.bin")
	path := filepath.Join(dir, f.Name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, f.Size+500), 0o644))

	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(f.Size), info.Size())
	require.True(t, f.Verify(dir))
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	c.failures.Store(1)
	dir := t.TempDir()

	d := newTestDownloader(t, download.WithRetries(3))

	f := fileByName(t, rel.man, "three.bin")
	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))
	require.True(t, f.Verify(dir))

	// One failed attempt plus the successful retry.
	require.EqualValues(t, 2, c.requests.Load())
}

func TestDownloadGivesUpAfterRetries(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	c.failures.Store(100)
	dir := t.TempDir()

	d := newTestDownloader(t, download.WithRetries(2))

	f := fileByName(t, rel.man, "three.bin")
	err := d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil)
	require.ErrorIs(t, err, errs.ErrRangeStatus)
	require.EqualValues(t, 2, c.requests.Load())
}

func TestDownloadMissingBundleIsNotRetried(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	d := newTestDownloader(t, download.WithRetries(5))

	f := fileByName(t, rel.man, "three.bin")
	plan := download.PlanAll(f)
	for _, bundle := range plan.Bundles {
		bundle.Name = "0000000000000000.bundle" // not on the CDN
	}

	err := d.FileToDir(plan, c.server.URL, dir, nil)
	require.ErrorIs(t, err, errs.ErrRangeStatus)
	// 404 is permanent: a single attempt.
	require.EqualValues(t, 1, c.requests.Load())
}

func TestDownloadAll(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	d := newTestDownloader(t)

	var mu sync.Mutex
	var total uint32
	err := d.DownloadAll(rel.man.Files, c.server.URL, dir, 4, func(name string, n uint32) {
		mu.Lock()
		total += n
		mu.Unlock()
	})
	require.NoError(t, err)

	var want uint32
	for i := range rel.man.Files {
		f := &rel.man.Files[i]
		require.True(t, f.Verify(dir), "file %q failed verification", f.Name)
		want += download.PlanAll(f).TotalSize()
	}
	require.Equal(t, want, total)

	// Second run: everything verifies, nothing is fetched.
	before := c.requests.Load()
	require.NoError(t, d.DownloadAll(rel.man.Files, c.server.URL, dir, 4, nil))
	require.Equal(t, before, c.requests.Load())
}

func TestBundleCacheAvoidsRefetch(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	cache, err := download.NewBundleCache(filepath.Join(t.TempDir(), "ranges"), format.CompressionS2)
	require.NoError(t, err)

	d := newTestDownloader(t, download.WithCache(cache))

	f := fileByName(t, rel.man, "one.bin")
	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))
	require.True(t, f.Verify(dir))

	fetched := c.requests.Load()

	// Re-download from scratch: the range comes from the cache.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, f.Name)))
	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))
	require.True(t, f.Verify(dir))
	require.Equal(t, fetched, c.requests.Load())
}

func TestBundleCacheCorruptEntryFallsBack(t *testing.T) {
	rel := simpleRelease(t)
	c := newCDN(t, rel)
	dir := t.TempDir()

	cacheDir := filepath.Join(t.TempDir(), "ranges")
	cache, err := download.NewBundleCache(cacheDir, format.CompressionZstd)
	require.NoError(t, err)

	d := newTestDownloader(t, download.WithCache(cache))

	f := fileByName(t, rel.man, "three.bin")
	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))

	// Wreck every cache entry; the next download must go to the network.
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		require.NoError(t, os.WriteFile(filepath.Join(cacheDir, e.Name()), []byte("junk"), 0o644))
	}

	before := c.requests.Load()
	require.NoError(t, os.RemoveAll(filepath.Join(dir, f.Name)))
	require.NoError(t, d.FileToDir(download.PlanAll(f), c.server.URL, dir, nil))
	require.True(t, f.Verify(dir))
	require.Greater(t, c.requests.Load(), before)
}

func TestDownloaderOptionValidation(t *testing.T) {
	_, err := download.NewDownloader(download.WithRetries(0))
	require.Error(t, err)

	_, err = download.NewDownloader(download.WithRetryWait(0, time.Second))
	require.Error(t, err)

	_, err = download.NewDownloader(download.WithRetryWait(time.Second, time.Millisecond))
	require.Error(t, err)
}
