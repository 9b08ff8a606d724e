package artifact

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
	"github.com/anvil-platform/releaseplan/internal/registry"
)

const testChangelog = `# Release History

## 0.22.0 (Unreleased)

### Features Added

- Streaming pager support.

## 0.21.0 (2025-01-10)

### Breaking Changes

- Removed ` + "`ClientOptions::retry`" + `.

### Bugs Fixed

- Fixed token refresh.

## 0.20.0 (2024-12-01)

- Initial release.
`

type staticOracle map[string]registry.Result

func (o staticOracle) ListPublishedVersions(ctx context.Context, name string) registry.Result {
	if r, ok := o[strings.ToLower(name)]; ok {
		return r
	}
	return registry.NotFound()
}

type tarEntry struct {
	name string
	body string
	dir  bool
}

func writeCrate(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeArtifact(t *testing.T, dir, name, version string, entries []tarEntry) Pair {
	t.Helper()
	pair := Pair{
		Metadata: filepath.Join(dir, name+SidecarExt),
		Archive:  filepath.Join(dir, name+ArchiveExt),
	}
	sidecar := `{"name":"` + name + `","version":"` + version + `"}`
	require.NoError(t, os.WriteFile(pair.Metadata, []byte(sidecar), 0o644))
	writeCrate(t, pair.Archive, entries)
	return pair
}

func crateEntries(name, version string) []tarEntry {
	root := name + "-" + version + "/"
	return []tarEntry{
		{name: root, dir: true},
		{name: root + "Cargo.toml", body: "[package]\nname = \"" + name + "\"\n"},
		{name: root + "CHANGELOG.md", body: testChangelog},
		{name: root + "README.md", body: "# " + name + "\n\nClient library.\n"},
		{name: root + "src/lib.rs", body: "pub fn f() {}\n"},
	}
}

func TestChangelogSection(t *testing.T) {
	got := ChangelogSection(testChangelog, "0.21.0")
	want := "### Breaking Changes\n\n- Removed `ClientOptions::retry`.\n\n### Bugs Fixed\n\n- Fixed token refresh."
	assert.Equal(t, want, got)

	assert.Equal(t, "- Initial release.", ChangelogSection(testChangelog, "0.20.0"))
	assert.Equal(t, "### Features Added\n\n- Streaming pager support.", ChangelogSection(testChangelog, "0.22.0"))
	assert.Equal(t, "", ChangelogSection(testChangelog, "9.9.9"))
	assert.Equal(t, "", ChangelogSection("", "1.0.0"))
}

func TestChangelogSection_HeadingVariants(t *testing.T) {
	doc := "## [v1.0.0-beta.1] - 2024\r\nbeta notes\r\n## 0.9.0\r\nold\r\n"
	assert.Equal(t, "beta notes", ChangelogSection(doc, "1.0.0-beta.1"))
	assert.Equal(t, "", ChangelogSection(doc, "1.0.0"))
}

func TestBuildReleaseDescriptor(t *testing.T) {
	dir := t.TempDir()
	pair := writeArtifact(t, dir, "azure_core", "0.21.0", crateEntries("azure_core", "0.21.0"))
	x := &Extractor{
		ScratchDir: filepath.Join(dir, "scratch"),
		Oracle:     staticOracle{"azure_core": registry.Confirmed([]string{"0.20.0", "0.19.0"})},
	}

	d, err := x.BuildReleaseDescriptor(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, "azure_core", d.PackageID)
	assert.Equal(t, "0.21.0", d.Version)
	assert.Equal(t, "azure_core_0.21.0", d.Tag)
	assert.Equal(t, v1alpha1.PackageClassDataPlane, d.Class)
	assert.Equal(t, v1alpha1.DeployabilityDeployable, d.Deployable)
	assert.Equal(t, "0.20.0", d.LatestPublished)
	assert.True(t, strings.HasPrefix(d.Changelog, "### Breaking Changes"))
	assert.Equal(t, "# azure_core\n\nClient library.\n", d.Readme)

	_, err = os.Stat(filepath.Join(dir, "scratch", "azure_core"))
	assert.True(t, os.IsNotExist(err), "scratch dir must be removed")
}

func TestBuildReleaseDescriptor_CleanupFailureDiscardsDescriptor(t *testing.T) {
	dir := t.TempDir()
	pair := writeArtifact(t, dir, "azure_core", "0.21.0", crateEntries("azure_core", "0.21.0"))
	x := &Extractor{ScratchDir: filepath.Join(dir, "scratch"), Oracle: staticOracle{}}

	orig := removeScratch
	removeScratch = func(string) error { return errors.New("device busy") }
	t.Cleanup(func() { removeScratch = orig })

	d, err := x.BuildReleaseDescriptor(context.Background(), pair)
	assert.Nil(t, d)
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "cleanup scratch", extractErr.Op)
}

func TestBuildReleaseDescriptor_DeployabilityStates(t *testing.T) {
	dir := t.TempDir()
	pair := writeArtifact(t, dir, "azure_core", "0.21.0", crateEntries("azure_core", "0.21.0"))

	cases := map[string]struct {
		result registry.Result
		want   v1alpha1.Deployability
	}{
		"published":    {registry.Confirmed([]string{"0.21.0"}), v1alpha1.DeployabilityPublished},
		"absent":       {registry.Confirmed([]string{"0.20.0"}), v1alpha1.DeployabilityDeployable},
		"never":        {registry.NotFound(), v1alpha1.DeployabilityDeployable},
		"registryDown": {registry.Unknown(errors.New("connection reset")), v1alpha1.DeployabilityUnknown},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			x := &Extractor{ScratchDir: filepath.Join(dir, "scratch"), Oracle: staticOracle{"azure_core": tc.result}}
			d, err := x.BuildReleaseDescriptor(context.Background(), pair)
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Deployable)
		})
	}
}

func TestBuildReleaseDescriptor_Idempotent(t *testing.T) {
	dir := t.TempDir()
	pair := writeArtifact(t, dir, "azure_identity", "0.21.0", crateEntries("azure_identity", "0.21.0"))
	scratch := filepath.Join(dir, "scratch")

	// Leftover from a crashed run, including a file the archive does not contain.
	stale := filepath.Join(scratch, "azure_identity", "azure_identity-0.21.0")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "README.md"), []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "azure_identity", "junk"), []byte("x"), 0o644))

	x := &Extractor{ScratchDir: scratch, Oracle: staticOracle{}}
	first, err := x.BuildReleaseDescriptor(context.Background(), pair)
	require.NoError(t, err)
	second, err := x.BuildReleaseDescriptor(context.Background(), pair)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, "stale", first.Readme)
}

func TestBuildReleaseDescriptor_MissingDocuments(t *testing.T) {
	dir := t.TempDir()
	pair := writeArtifact(t, dir, "azure_svc_blobstorage", "0.1.0", []tarEntry{
		{name: "azure_svc_blobstorage-0.1.0/Cargo.toml", body: "[package]\n"},
	})
	x := &Extractor{ScratchDir: filepath.Join(dir, "scratch"), Oracle: staticOracle{}}

	d, err := x.BuildReleaseDescriptor(context.Background(), pair)
	require.NoError(t, err)
	assert.Empty(t, d.Changelog)
	assert.Empty(t, d.Readme)
	assert.Equal(t, v1alpha1.PackageClassGeneratedDataPlane, d.Class)
}

func TestBuildReleaseDescriptor_FlatArchive(t *testing.T) {
	dir := t.TempDir()
	pair := writeArtifact(t, dir, "flat", "0.20.0", []tarEntry{
		{name: "CHANGELOG.md", body: testChangelog},
		{name: "readme.md", body: "lower-case readme"},
	})
	x := &Extractor{ScratchDir: filepath.Join(dir, "scratch"), Oracle: staticOracle{}}

	d, err := x.BuildReleaseDescriptor(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, "- Initial release.", d.Changelog)
	assert.Equal(t, "lower-case readme", d.Readme)
}

func TestBuildReleaseDescriptor_ExtractionErrors(t *testing.T) {
	dir := t.TempDir()
	x := &Extractor{ScratchDir: filepath.Join(dir, "scratch"), Oracle: staticOracle{}}

	corrupt := Pair{Metadata: filepath.Join(dir, "corrupt.json"), Archive: filepath.Join(dir, "corrupt.crate")}
	require.NoError(t, os.WriteFile(corrupt.Metadata, []byte(`{"name":"corrupt","version":"1.0.0"}`), 0o644))
	require.NoError(t, os.WriteFile(corrupt.Archive, []byte("this is not gzip"), 0o644))

	badMeta := Pair{Metadata: filepath.Join(dir, "badmeta.json"), Archive: filepath.Join(dir, "badmeta.crate")}
	require.NoError(t, os.WriteFile(badMeta.Metadata, []byte(`{"name":""}`), 0o644))

	escape := writeArtifact(t, dir, "escape", "1.0.0", []tarEntry{{name: "../../evil.txt", body: "x"}})

	for name, pair := range map[string]Pair{"corrupt": corrupt, "badmeta": badMeta, "escape": escape} {
		t.Run(name, func(t *testing.T) {
			_, err := x.BuildReleaseDescriptor(context.Background(), pair)
			var xerr *ExtractionError
			require.True(t, errors.As(err, &xerr), "got %v", err)
			assert.Equal(t, name, xerr.Artifact)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "evil.txt"))
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Join(dir, "scratch"))
	require.NoError(t, err)
	assert.Empty(t, entries, "failed extractions must clean up")
}

func TestBuildReleaseDescriptor_RequiresOracle(t *testing.T) {
	x := &Extractor{ScratchDir: t.TempDir()}
	_, err := x.BuildReleaseDescriptor(context.Background(), Pair{})
	assert.Error(t, err)
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	want := writeArtifact(t, dir, "azure_core", "1.0.0", crateEntries("azure_core", "1.0.0"))
	src := &LocalSource{Dir: dir}

	got, err := src.Fetch(context.Background(), "azure_core")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "azure_core", got.BaseName())

	_, err = src.Fetch(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	require.NoError(t, os.Remove(want.Archive))
	_, err = src.Fetch(context.Background(), "azure_core")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestNewS3SourceValidation(t *testing.T) {
	_, err := NewS3Source(S3Config{Bucket: "b", StagingDir: "/tmp/x"})
	assert.Error(t, err)
	_, err = NewS3Source(S3Config{Endpoint: "localhost:9000", StagingDir: "/tmp/x"})
	assert.Error(t, err)
	_, err = NewS3Source(S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.Error(t, err)

	src, err := NewS3Source(S3Config{Endpoint: "localhost:9000", Bucket: "b", Prefix: "/artifacts/", StagingDir: "/tmp/x", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "artifacts/azure_core.json", src.objectKey("azure_core.json"))
}

func TestS3SourceMissingObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	src, err := NewS3Source(S3Config{
		Endpoint:   u.Host,
		Bucket:     "artifacts",
		AccessKey:  "k",
		SecretKey:  "s",
		StagingDir: t.TempDir(),
	})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), "azure_core")
	assert.True(t, errors.Is(err, ErrArtifactNotFound), "got %v", err)
}
