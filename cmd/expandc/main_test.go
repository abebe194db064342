package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/textexpander/pkg/trie"
)

const testManifest = `
[[expander]]
[[expander.expansion]]
short-code = "sig"
expanded-text = "Best regards,{{cmd:win}}"

[[expander.expansion]]
short-code = "brb"
expanded-text = "be right back"
disable-preserve-trigger = true
`

func setup(t *testing.T, manifest string) (buildDir, outDir string) {
	t.Helper()
	root := t.TempDir()
	buildDir = filepath.Join(root, "build")
	outDir = filepath.Join(root, "out")
	if err := os.MkdirAll(filepath.Join(buildDir, "config"), 0755); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(buildDir, "config", "expansions.toml"), []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return buildDir, outDir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestRunWritesOutputs(t *testing.T) {
	buildDir, outDir := setup(t, testManifest)
	src := filepath.Join(outDir, "generated_trie.c")
	hdr := filepath.Join(outDir, "generated_trie.h")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-q", buildDir, src, hdr}, &stdout, &stderr); code != 0 {
		t.Fatalf("run exit = %d, stderr: %s", code, stderr.String())
	}

	source := readFile(t, src)
	for _, want := range []string{
		"const uint16_t zmk_text_expander_trie_num_nodes = 7;",
		`Best regards,\001\000`,
		"be right back",
	} {
		if !strings.Contains(source, want) {
			t.Errorf("source missing %q:\n%s", want, source)
		}
	}
	if header := readFile(t, hdr); !strings.Contains(header, "#define ZMK_TEXT_EXPANDER_GENERATED_MAX_SHORT_LEN 3\n") {
		t.Errorf("header = %q", header)
	}
	if stdout.Len() != 0 {
		t.Errorf("unexpected stdout: %s", stdout.String())
	}
}

func TestRunPrefixAndExtraOutputs(t *testing.T) {
	buildDir, outDir := setup(t, testManifest)
	src := filepath.Join(outDir, "t.c")
	hdr := filepath.Join(outDir, "t.h")
	img := filepath.Join(outDir, "trie.bin")
	bundle := filepath.Join(outDir, "trie.cbor")

	var stdout, stderr bytes.Buffer
	args := []string{"-q", "-p", "kb", "--image", img, "--bundle", bundle, buildDir, src, hdr}
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("run exit = %d, stderr: %s", code, stderr.String())
	}

	if !strings.Contains(readFile(t, src), "const struct trie_node kb_trie_nodes[]") {
		t.Error("prefix not applied to source")
	}
	if !strings.Contains(readFile(t, hdr), "#define KB_GENERATED_MAX_SHORT_LEN 3") {
		t.Error("prefix not applied to header")
	}

	fromImage, err := trie.UnmarshalImage([]byte(readFile(t, img)))
	if err != nil {
		t.Fatalf("UnmarshalImage failed: %v", err)
	}
	fromBundle, err := trie.UnmarshalBundle([]byte(readFile(t, bundle)))
	if err != nil {
		t.Fatalf("UnmarshalBundle failed: %v", err)
	}
	if trie.Fingerprint(fromImage) != trie.Fingerprint(fromBundle) {
		t.Error("image and bundle describe different tables")
	}
	for _, key := range []string{"sig", "brb"} {
		if _, ok := fromImage.Search(key); !ok {
			t.Errorf("image missing %q", key)
		}
	}
}

func TestRunManifestOutputSection(t *testing.T) {
	manifest := `
[output]
prefix = "kb_text"
source = "gen/trie.c"
header = "gen/trie.h"
` + testManifest
	buildDir, _ := setup(t, manifest)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-q", buildDir}, &stdout, &stderr); code != 0 {
		t.Fatalf("run exit = %d, stderr: %s", code, stderr.String())
	}
	genDir := filepath.Join(buildDir, "config", "gen")
	if !strings.Contains(readFile(t, filepath.Join(genDir, "trie.c")), "kb_text_string_pool") {
		t.Error("manifest prefix not applied")
	}
	readFile(t, filepath.Join(genDir, "trie.h"))
}

func TestRunExplicitManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.yaml")
	yaml := "expander:\n  - expansion:\n      - short-code: hi\n        expanded-text: hello\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	args := []string{"-q", "-f", path, "--dump", dir, filepath.Join(dir, "a.c"), filepath.Join(dir, "a.h")}
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("run exit = %d, stderr: %s", code, stderr.String())
	}
	listing := stdout.String()
	for _, want := range []string{"Nodes: 3", `TEXT "hello"`} {
		if !strings.Contains(listing, want) {
			t.Errorf("dump missing %q:\n%s", want, listing)
		}
	}
}

func TestRunMissingManifestWritesStubs(t *testing.T) {
	buildDir, outDir := setup(t, "")
	src := filepath.Join(outDir, "generated_trie.c")
	hdr := filepath.Join(outDir, "generated_trie.h")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-q", buildDir, src, hdr}, &stdout, &stderr); code != 1 {
		t.Fatalf("run exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no expansions file found") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if !strings.Contains(readFile(t, src), "zmk_text_expander_trie_num_nodes = 0;") {
		t.Error("stub source not written")
	}
	if !strings.Contains(readFile(t, hdr), "_GENERATED_MAX_SHORT_LEN 0") {
		t.Error("stub header not written")
	}
}

func TestRunFatalErrorWritesNothing(t *testing.T) {
	manifest := `
[[expander]]
[[expander.expansion]]
short-code = "café"
expanded-text = "coffee"
`
	buildDir, outDir := setup(t, manifest)
	src := filepath.Join(outDir, "t.c")
	hdr := filepath.Join(outDir, "t.h")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-q", buildDir, src, hdr}, &stdout, &stderr); code != 1 {
		t.Fatalf("run exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "not ASCII") {
		t.Errorf("stderr = %q", stderr.String())
	}
	for _, p := range []string{src, hdr} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should not exist (err = %v)", p, err)
		}
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, 2},
		{"two positionals", []string{"a", "b"}, 2},
		{"unknown flag", []string{"--bogus", "a"}, 2},
		{"help", []string{"-h"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, code, tt.want)
			}
			if tt.want == 2 && !strings.Contains(stderr.String(), "Usage: expandc") && !strings.Contains(stderr.String(), "unknown flag") {
				t.Errorf("stderr = %q", stderr.String())
			}
		})
	}
}

func TestRunNoOutputPaths(t *testing.T) {
	buildDir, _ := setup(t, testManifest)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-q", buildDir}, &stdout, &stderr); code != 2 {
		t.Errorf("run exit = %d, want 2", code)
	}
}

const warnedManifest = `
[[expander]]
[[expander.expansion]]
short-code = "a b"
expanded-text = "spaced"

[[expander.expansion]]
short-code = "raw"
expanded-text = "{{{unclosed"

[[expander.expansion]]
short-code = "ok"
expanded-text = "fine"
`

func TestRunReportsWarnings(t *testing.T) {
	buildDir, outDir := setup(t, warnedManifest)

	var stdout, stderr bytes.Buffer
	args := []string{buildDir, filepath.Join(outDir, "t.c"), filepath.Join(outDir, "t.h")}
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("run exit = %d, stderr: %s", code, stderr.String())
	}

	logged := stderr.String()
	for _, want := range []string{
		`short code "a b" contains whitespace`,
		`short code "raw": unclosed literal block`,
	} {
		if !strings.Contains(logged, want) {
			t.Errorf("stderr missing %q:\n%s", want, logged)
		}
	}
}

func TestRunQuietSuppressesWarnings(t *testing.T) {
	buildDir, outDir := setup(t, warnedManifest)

	var stdout, stderr bytes.Buffer
	args := []string{"-q", buildDir, filepath.Join(outDir, "t.c"), filepath.Join(outDir, "t.h")}
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("run exit = %d, stderr: %s", code, stderr.String())
	}
	if strings.Contains(stderr.String(), "whitespace") {
		t.Errorf("quiet run logged warnings:\n%s", stderr.String())
	}
}
