// Package manifest loads expansions files: the short code definitions and
// output settings that feed the trie compiler.
//
// A TOML manifest looks like:
//
//	[output]
//	prefix = "zmk_text_expander"
//
//	[[expander]]
//	disable-preserve-trigger = true
//
//	[[expander.expansion]]
//	short-code = "sig"
//	expanded-text = "Best regards,{{cmd:win}}"
//	preserve-trigger = true
//
// The same structure is accepted as YAML or JSON with comments.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// FileNames are the manifest names searched for by Find, in order of
// preference within a single directory.
var FileNames = []string{
	"expansions.toml",
	"expansions.yaml",
	"expansions.yml",
	"expansions.jsonc",
	"expansions.json",
}

// ErrNotFound is returned by Find when no manifest exists below the
// search root.
var ErrNotFound = errors.New("manifest: no expansions file found")

// Format identifies a manifest encoding.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
	FormatJSONC
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	case FormatJSONC:
		return "jsonc"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Manifest is a parsed expansions file.
type Manifest struct {
	Output    Output     `toml:"output" yaml:"output" json:"output"`
	Expanders []Expander `toml:"expander" yaml:"expander" json:"expander"`

	// Path is the file the manifest was loaded from (set at load time).
	Path string `toml:"-" yaml:"-" json:"-"`
}

// Output configures generated file names and symbols. Command line flags
// take precedence over these values.
type Output struct {
	Prefix string `toml:"prefix" yaml:"prefix" json:"prefix"`
	Source string `toml:"source" yaml:"source" json:"source"`
	Header string `toml:"header" yaml:"header" json:"header"`
	Image  string `toml:"image" yaml:"image" json:"image"`
	Bundle string `toml:"bundle" yaml:"bundle" json:"bundle"`
}

// Expander is one group of expansions sharing a trigger policy.
type Expander struct {
	Name string `toml:"name" yaml:"name" json:"name"`
	// DisablePreserveTrigger flips the group default so that typed short
	// codes are replaced rather than kept.
	DisablePreserveTrigger bool `toml:"disable-preserve-trigger" yaml:"disable-preserve-trigger" json:"disable-preserve-trigger"`
	// CaseSensitive keeps short codes as written instead of lower-casing.
	CaseSensitive bool        `toml:"case-sensitive" yaml:"case-sensitive" json:"case-sensitive"`
	Expansions    []Expansion `toml:"expansion" yaml:"expansion" json:"expansion"`
}

// Expansion is a single short code definition. ShortCode and ExpandedText
// are pointers so an absent key can be told apart from an empty one.
type Expansion struct {
	ShortCode              *string `toml:"short-code" yaml:"short-code" json:"short-code"`
	ExpandedText           *string `toml:"expanded-text" yaml:"expanded-text" json:"expanded-text"`
	PreserveTrigger        bool    `toml:"preserve-trigger" yaml:"preserve-trigger" json:"preserve-trigger"`
	DisablePreserveTrigger bool    `toml:"disable-preserve-trigger" yaml:"disable-preserve-trigger" json:"disable-preserve-trigger"`
}

// FormatForPath picks a format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	default:
		return 0, fmt.Errorf("manifest: unsupported file extension %q", filepath.Ext(path))
	}
}

// Parse decodes a manifest in the given format.
func Parse(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, err
		}
		for _, key := range md.Undecoded() {
			log.Warningf("unknown manifest key %q", key.String())
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	case FormatJSONC:
		if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("manifest: unknown format %v", format)
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Path = path
	log.Debugf("loaded %s: %d expander(s)", path, len(m.Expanders))
	return m, nil
}

// Find walks buildDir in lexical order and returns the first file whose
// name is one of FileNames. Within a directory the FileNames order wins.
func Find(buildDir string) (string, error) {
	found := ""
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		for _, name := range FileNames {
			candidate := filepath.Join(path, name)
			if info, statErr := os.Stat(candidate); statErr == nil && info.Mode().IsRegular() {
				found = candidate
				return fs.SkipAll
			}
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", ErrNotFound, buildDir)
	}
	if err != nil {
		return "", fmt.Errorf("searching %s: %w", buildDir, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w in %s", ErrNotFound, buildDir)
	}
	return found, nil
}

// FindAndLoad locates the manifest below buildDir and loads it.
func FindAndLoad(buildDir string) (*Manifest, error) {
	path, err := Find(buildDir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}
