// Package presets holds the advertising platform size table.
package presets

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is one platform placement with its target ratio and pixel size.
type Preset struct {
	Platform    string `yaml:"platform" json:"platform"`
	Name        string `yaml:"name" json:"name"`
	Ratio       string `yaml:"ratio" json:"ratio"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`
	Description string `yaml:"description" json:"description"`
}

// Size returns the preset dimensions as WxH.
func (p Preset) Size() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

var load = sync.OnceValue(func() []Preset {
	var out []Preset
	if err := yaml.Unmarshal(presetsYAML, &out); err != nil {
		panic(fmt.Sprintf("presets: parse embedded table: %v", err))
	}
	return out
})

// All returns every preset in table order.
func All() []Preset {
	return slices.Clone(load())
}

// Filter returns presets matching platform and ratio. Empty arguments match anything.
func Filter(platform, ratio string) []Preset {
	var out []Preset
	for _, p := range load() {
		if platform != "" && p.Platform != platform {
			continue
		}
		if ratio != "" && p.Ratio != ratio {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ByName looks up a preset by its display name.
func ByName(name string) (Preset, bool) {
	for _, p := range load() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Platforms returns the distinct platforms in table order.
func Platforms() []string {
	var out []string
	for _, p := range load() {
		if !slices.Contains(out, p.Platform) {
			out = append(out, p.Platform)
		}
	}
	return out
}

// Ratios returns the distinct ratios offered for platform.
func Ratios(platform string) []string {
	var out []string
	for _, p := range Filter(platform, "") {
		if !slices.Contains(out, p.Ratio) {
			out = append(out, p.Ratio)
		}
	}
	return out
}
