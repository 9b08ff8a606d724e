package main

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvil-platform/releaseplan/internal/artifact"
)

type fixture struct {
	root     string
	registry *httptest.Server
}

// newFixture lays out a three package workspace snapshot, local artifacts and
// a fake registry that knows azure_core 0.1.0 only.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	snapshot := map[string]any{
		"workspace_root": root,
		"packages": []map[string]any{
			{
				"name":          "azure_core",
				"version":       "0.2.0",
				"manifest_path": filepath.Join(root, "sdk/core/azure_core/Cargo.toml"),
			},
			{
				"name":          "azure_identity",
				"version":       "0.1.0",
				"manifest_path": filepath.Join(root, "sdk/identity/azure_identity/Cargo.toml"),
				"dependencies":  []map[string]string{{"name": "azure_core"}},
			},
			{
				"name":          "azure_security_keyvault_secrets",
				"version":       "0.1.0",
				"manifest_path": filepath.Join(root, "sdk/keyvault/azure_security_keyvault_secrets/Cargo.toml"),
				"dependencies":  []map[string]string{{"name": "azure_identity"}, {"name": "azure_core", "kind": "dev"}},
			},
		},
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "metadata.json"), data, 0o644))

	artifacts := filepath.Join(root, "target", "package")
	require.NoError(t, os.MkdirAll(artifacts, 0o755))
	writeCrate(t, artifacts, "azure_core", "0.2.0")
	writeCrate(t, artifacts, "azure_identity", "0.1.0")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/crates/azure_core" {
			_, _ = w.Write([]byte(`{"versions":[{"num":"0.1.0","yanked":false}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("RELEASEPLAN_REGISTRY_URL", srv.URL)

	return &fixture{root: root, registry: srv}
}

func (f *fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	base := []string{"--root", f.root, "--metadata-file", "metadata.json", "--env-file", ""}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(base, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeCrate(t *testing.T, dir, name, version string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	body := "# Release History\n\n## " + version + "\n\n- Changes in " + name + ".\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     name + "-" + version + "/CHANGELOG.md",
		Mode:     0o644,
		Size:     int64(len(body)),
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, name+artifact.ArchiveExt), buf.Bytes(), 0o644))
	sidecar := `{"name":"` + name + `","version":"` + version + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+artifact.SidecarExt), []byte(sidecar), 0o644))
}

func TestImpactCommand(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "impact", "azure_core")
	require.Equal(t, 0, code)
	assert.Equal(t, "azure_identity\nazure_security_keyvault_secrets\n", out)

	code, out, _ = f.run(t, "-o", "json", "impact", "azure_security_keyvault_secrets")
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"package":"azure_security_keyvault_secrets","impacted":[]}`, out)
}

func TestImpactCommand_SnapshotFromAnotherCheckout(t *testing.T) {
	root := t.TempDir()
	body := `{"workspace_root": "/home/ci/repo", "packages": [
	  {"name": "azure_core", "version": "1.0.0", "manifest_path": "/home/ci/repo/sdk/core/azure_core/Cargo.toml"},
	  {"name": "azure_identity", "version": "1.0.0", "manifest_path": "/home/ci/repo/sdk/identity/azure_identity/Cargo.toml",
	   "dependencies": [{"name": "azure_core"}]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "metadata.json"), []byte(body), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--root", root, "--metadata-file", "metadata.json", "--metadata-root", root, "--env-file", "",
		"impact", "azure_core",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "azure_identity\n", stdout.String())
}

func TestImpactCommand_UnknownPackage(t *testing.T) {
	f := newFixture(t)

	code, _, stderr := f.run(t, "impact", "azure_missing")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "package not found")
}

func TestPlanCommand(t *testing.T) {
	f := newFixture(t)
	textfile := filepath.Join(f.root, "releaseplan.prom")

	code, out, _ := f.run(t, "-o", "json", "--metrics-textfile", textfile, "plan", "azure_identity", "azure_core")
	require.Equal(t, 0, code)

	var plan struct {
		Entries []struct {
			Candidate  string `json:"candidate"`
			Error      string `json:"error"`
			Impacted   []string
			Descriptor struct {
				Tag             string `json:"tag"`
				Deployable      *bool  `json:"deployable"`
				LatestPublished string `json:"latestPublished"`
				Changelog       string `json:"changelog"`
			} `json:"descriptor"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Entries, 2)

	core := plan.Entries[0]
	assert.Equal(t, "azure_core", core.Candidate)
	assert.Empty(t, core.Error)
	assert.Equal(t, "azure_core_0.2.0", core.Descriptor.Tag)
	require.NotNil(t, core.Descriptor.Deployable)
	assert.True(t, *core.Descriptor.Deployable)
	assert.Equal(t, "0.1.0", core.Descriptor.LatestPublished)
	assert.Contains(t, core.Descriptor.Changelog, "Changes in azure_core.")
	assert.Equal(t, []string{"azure_identity", "azure_security_keyvault_secrets"}, core.Impacted)

	identity := plan.Entries[1]
	assert.Equal(t, "azure_identity", identity.Candidate)
	require.NotNil(t, identity.Descriptor.Deployable)
	assert.True(t, *identity.Descriptor.Deployable)

	metricsOut, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsOut), "releaseplan_release_descriptors_total")
}

func TestPlanCommand_PartialFailure(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "plan", "azure_core", "azure_security_keyvault_secrets")
	assert.Equal(t, exitPartial, code)
	assert.True(t, strings.HasPrefix(out, "azure_core\t0.2.0\tazure_core_0.2.0\tdeployable=true\n"))
	assert.Contains(t, out, "azure_security_keyvault_secrets\terror\t")

	code, _, _ = f.run(t, "plan", "--allow-partial", "azure_core", "azure_security_keyvault_secrets")
	assert.Equal(t, 0, code)
}

func TestPlanCommand_MissingMetadataAborts(t *testing.T) {
	f := newFixture(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--root", f.root, "--metadata-file", "absent.json", "--env-file", "",
		"plan", "azure_core",
	}, &stdout, &stderr)
	assert.Equal(t, exitConfiguration, code)
	assert.Empty(t, stdout.String())
}

func TestVersionsCommand(t *testing.T) {
	f := newFixture(t)

	code, out, _ := f.run(t, "-o", "json", "versions", "Azure_Core")
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"package":"Azure_Core","state":"confirmed","versions":["0.1.0"],"latest":"0.1.0"}`, out)

	code, out, _ = f.run(t, "versions", "azure_identity")
	require.Equal(t, 0, code)
	assert.Equal(t, "azure_identity\tnot_found\n", out)
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	f := newFixture(t)

	code, _, _ := f.run(t, "-o", "yaml", "versions", "azure_core")
	assert.Equal(t, exitFailure, code)
}
