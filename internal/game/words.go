package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultWords is the built-in word list used when no word packs or custom
// words are configured.
var DefaultWords = []string{
	"apple", "banana", "bicycle", "bridge", "butterfly", "cactus",
	"camera", "candle", "castle", "cloud", "compass", "dragon",
	"elephant", "feather", "guitar", "hammer", "island", "kite",
	"ladder", "lantern", "lighthouse", "mountain", "mushroom", "octopus",
	"penguin", "pirate", "pyramid", "rainbow", "robot", "rocket",
	"sailboat", "snowman", "spider", "telescope", "tornado", "umbrella",
	"violin", "volcano", "whale", "windmill",
}

// yamlWordPack is the top-level YAML structure for word pack files.
type yamlWordPack struct {
	Pack struct {
		Name  string   `yaml:"name"`
		Words []string `yaml:"words"`
	} `yaml:"pack"`
}

// WordPack is a named list of guessing words loaded from content files.
type WordPack struct {
	Name  string
	Words []string
}

// LoadWordPackFromBytes parses and validates a word pack from YAML bytes.
//
// Postcondition: Returns a pack with at least one word, or a non-nil error.
func LoadWordPackFromBytes(data []byte) (*WordPack, error) {
	var file yamlWordPack
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing word pack YAML: %w", err)
	}

	pack := WordPack{Name: file.Pack.Name}
	for _, w := range file.Pack.Words {
		w = strings.TrimSpace(w)
		if w != "" {
			pack.Words = append(pack.Words, w)
		}
	}
	if pack.Name == "" {
		return nil, fmt.Errorf("word pack missing pack.name")
	}
	if len(pack.Words) == 0 {
		return nil, fmt.Errorf("word pack %q has no words", pack.Name)
	}
	return &pack, nil
}

// LoadWordPacksFromDir reads every .yaml/.yml file in dir as a word pack.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all packs, or an error naming the offending file.
func LoadWordPacksFromDir(dir string) ([]*WordPack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading word pack directory %s: %w", dir, err)
	}

	var packs []*WordPack
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading word pack %s: %w", path, err)
		}
		pack, err := LoadWordPackFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading word pack %s: %w", path, err)
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

// MergeWords combines word lists, trimming, de-duplicating case-insensitively,
// and sorting for deterministic room setup. Shuffling happens per game.
func MergeWords(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, w := range list {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			key := strings.ToLower(w)
			if !seen[key] {
				seen[key] = true
				out = append(out, w)
			}
		}
	}
	sort.Strings(out)
	return out
}
