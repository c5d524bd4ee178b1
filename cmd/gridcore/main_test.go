package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/InfyniteHeap/gridcore/internal/checksum"
	"github.com/InfyniteHeap/gridcore/internal/downloader"
	"github.com/InfyniteHeap/gridcore/internal/manifest"
	"github.com/InfyniteHeap/gridcore/internal/testutils"
)

const testRelease = "1.21.5"

var clientJar = []byte("client jar contents")

// publishTestRelease serves a small release whose documents refer to the
// official hosts, so the CLI reaches it through the mirror source.
func publishTestRelease(t *testing.T) (*testutils.CDN, *testutils.Published) {
	t.Helper()
	cdn := testutils.NewCDN(t)
	cdn.UseOfficialURLs()
	pub := cdn.Publish(t, testutils.Release{
		ID:     testRelease,
		Client: clientJar,
		Libraries: []testutils.Library{
			{Path: "com/example/core/1.0/core-1.0.jar", Data: []byte("core library")},
			{Path: "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar", Data: []byte("lwjgl")},
		},
		Assets: map[string][]byte{
			"minecraft/sounds/ambient/cave1.ogg": []byte("cave"),
			"minecraft/lang/en_us.json":          []byte(`{"a":"b"}`),
		},
		LogConfig: []byte("<Configuration/>"),
	})
	return cdn, pub
}

// commonArgs points a command at root and the fake CDN.
func commonArgs(cdn *testutils.CDN, root string, extra ...string) []string {
	args := []string{
		"-root", root,
		"-source", "mirror",
		"-mirror-base", cdn.URL(),
		"-log-level", "error",
	}
	return append(args, extra...)
}

func assertInstalled(t *testing.T, root string, pub *testutils.Published) {
	t.Helper()
	for _, key := range pub.Keys() {
		sum, err := checksum.File(filepath.Join(root, filepath.FromSlash(key)))
		if err != nil {
			t.Errorf("%s: %v", key, err)
			continue
		}
		if !checksum.Equal(sum, pub.Files[key]) {
			t.Errorf("%s: digest %s, want %s", key, sum, pub.Files[key])
		}
	}
}

func TestRunCommands(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{nil, ExitInvalidArgs},
		{[]string{"help"}, ExitSuccess},
		{[]string{"--help"}, ExitSuccess},
		{[]string{"install"}, ExitInvalidArgs},
	}
	for _, tt := range tests {
		if got := run(tt.args); got != tt.want {
			t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestDownloadAndValidate(t *testing.T) {
	cdn, pub := publishTestRelease(t)
	root := t.TempDir()

	if code := run(append([]string{"download"}, commonArgs(cdn, root, "-version", testRelease, "-workers", "4")...)); code != ExitSuccess {
		t.Fatalf("download exit code %d", code)
	}
	assertInstalled(t, root, pub)

	if code := run(append([]string{"validate"}, commonArgs(cdn, root, "-version", testRelease)...)); code != ExitSuccess {
		t.Fatalf("validate exit code %d", code)
	}
}

func TestDownloadLatestAlias(t *testing.T) {
	cdn, pub := publishTestRelease(t)
	root := t.TempDir()

	if code := run(append([]string{"download"}, commonArgs(cdn, root, "-version", "latest-release")...)); code != ExitSuccess {
		t.Fatalf("download exit code %d", code)
	}
	assertInstalled(t, root, pub)
}

func TestDownloadIsIdempotent(t *testing.T) {
	cdn, _ := publishTestRelease(t)
	root := t.TempDir()
	args := append([]string{"download"}, commonArgs(cdn, root, "-version", testRelease)...)

	if code := run(args); code != ExitSuccess {
		t.Fatalf("first download exit code %d", code)
	}

	cdn.ResetHits()
	if code := run(args); code != ExitSuccess {
		t.Fatalf("second download exit code %d", code)
	}

	// Only the catalogue is fetched live; every file is already in place.
	if got := cdn.TotalHits(); got != 1 {
		t.Errorf("second download made %d request(s), want 1", got)
	}
	if got := cdn.Hits(testutils.CataloguePath); got != 1 {
		t.Errorf("catalogue fetched %d time(s), want 1", got)
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	cdn, pub := publishTestRelease(t)
	root := t.TempDir()

	if code := run(append([]string{"download"}, commonArgs(cdn, root, "-version", testRelease)...)); code != ExitSuccess {
		t.Fatalf("download exit code %d", code)
	}

	jar := filepath.Join(root, "versions", testRelease, testRelease+".jar")
	if err := os.WriteFile(jar, []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	validate := append([]string{"validate"}, commonArgs(cdn, root, "-version", testRelease)...)
	if code := run(validate); code != ExitValidationFailed {
		t.Fatalf("validate exit code %d, want %d", code, ExitValidationFailed)
	}
	if !strings.Contains(out.String(), "corrupted: versions/"+testRelease+"/"+testRelease+".jar") {
		t.Errorf("corrupted jar not reported:\n%s", out.String())
	}

	// Downloading again repairs the file.
	if code := run(append([]string{"download"}, commonArgs(cdn, root, "-version", testRelease)...)); code != ExitSuccess {
		t.Fatalf("repair download exit code %d", code)
	}
	assertInstalled(t, root, pub)
	if code := run(validate); code != ExitSuccess {
		t.Fatalf("validate after repair exit code %d", code)
	}
}

func TestDownloadUnknownRelease(t *testing.T) {
	cdn, _ := publishTestRelease(t)

	code := run(append([]string{"download"}, commonArgs(cdn, t.TempDir(), "-version", "0.0.1")...))
	if code != ExitNotFound {
		t.Errorf("exit code %d, want %d", code, ExitNotFound)
	}
}

func TestDownloadRequiresVersion(t *testing.T) {
	cdn, _ := publishTestRelease(t)

	if code := run(append([]string{"download"}, commonArgs(cdn, t.TempDir())...)); code != ExitInvalidArgs {
		t.Errorf("exit code %d, want %d", code, ExitInvalidArgs)
	}
}

func TestDownloadInvalidSource(t *testing.T) {
	code := run([]string{"download", "-root", t.TempDir(), "-source", "ftp", "-version", testRelease})
	if code != ExitInvalidArgs {
		t.Errorf("exit code %d, want %d", code, ExitInvalidArgs)
	}
}

func TestDownloadNetworkFailure(t *testing.T) {
	cdn, _ := publishTestRelease(t)
	cdn.SetStatus(fmt.Sprintf("/v1/objects/%s/client.jar", testutils.SHA1(clientJar)), 404)

	code := run(append([]string{"download"}, commonArgs(cdn, t.TempDir(), "-version", testRelease, "-retry-attempts", "1")...))
	if code != ExitNetworkError {
		t.Errorf("exit code %d, want %d", code, ExitNetworkError)
	}
}

func TestValidateNotInstalled(t *testing.T) {
	cdn, _ := publishTestRelease(t)

	code := run(append([]string{"validate"}, commonArgs(cdn, t.TempDir(), "-version", testRelease)...))
	if code != ExitNotFound {
		t.Errorf("exit code %d, want %d", code, ExitNotFound)
	}
}

func TestVersions(t *testing.T) {
	cdn, _ := publishTestRelease(t)
	cdn.Publish(t, testutils.Release{ID: "25w14a", Type: "snapshot", Client: []byte("snapshot jar")})

	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	root := t.TempDir()
	if code := run(append([]string{"versions"}, commonArgs(cdn, root, "-type", "all")...)); code != ExitSuccess {
		t.Fatalf("versions exit code %d", code)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 releases, got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "25w14a") || !strings.Contains(lines[0], "latest-snapshot") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], testRelease) || !strings.Contains(lines[1], "latest-release") {
		t.Errorf("unexpected second line %q", lines[1])
	}

	// The catalogue is cached for offline commands.
	if _, err := os.Stat(filepath.Join(root, "versions", "version_manifest_v2.json")); err != nil {
		t.Errorf("catalogue not cached: %v", err)
	}

	out.Reset()
	if code := run(append([]string{"versions"}, commonArgs(cdn, root)...)); code != ExitSuccess {
		t.Fatalf("versions exit code %d", code)
	}
	if strings.Contains(out.String(), "25w14a") {
		t.Errorf("snapshot listed under the default release filter:\n%s", out.String())
	}
}

func TestExitCode(t *testing.T) {
	task := downloader.Task{Dir: "versions/x", Name: "x.jar"}
	runErr := func(kinds ...error) error {
		e := &downloader.RunError{Total: len(kinds)}
		for _, k := range kinds {
			e.Failed = append(e.Failed, &downloader.TaskError{Task: task, Kind: k, Attempts: []error{k}})
		}
		return e
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"cancelled", fmt.Errorf("download interrupted: %w", context.Canceled), ExitGeneralError},
		{"not found", fmt.Errorf("%w: release", manifest.ErrNotFound), ExitNotFound},
		{"parse", fmt.Errorf("%w: bad json", manifest.ErrParse), ExitGeneralError},
		{"network run", runErr(downloader.ErrNetwork), ExitNetworkError},
		{"integrity run", runErr(downloader.ErrNetwork, downloader.ErrIntegrity), ExitIntegrityError},
		{"filesystem run", runErr(downloader.ErrIntegrity, downloader.ErrFilesystem), ExitStorageError},
		{"wrapped task", fmt.Errorf("fetch release metadata: %w", &downloader.TaskError{Task: task, Kind: downloader.ErrIntegrity}), ExitIntegrityError},
		{"network", fmt.Errorf("fetch catalogue: %w", downloader.ErrNetwork), ExitNetworkError},
		{"other", fmt.Errorf("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
