package presets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset maps a user-facing quality choice to a yt-dlp format selector.
type Preset struct {
	Name         string `yaml:"name" json:"name"`
	Label        string `yaml:"label" json:"label"`
	Format       string `yaml:"format" json:"format"`
	ExtractAudio bool   `yaml:"extract_audio" json:"extract_audio"`
}

// Builtins match the presets the desktop builds shipped with.
func Builtins() []Preset {
	return []Preset{
		{
			Name:   "best",
			Label:  "Video - Best quality",
			Format: "bestvideo+bestaudio/best",
		},
		{
			Name:   "1080p",
			Label:  "Video - 1080p",
			Format: "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best[height<=1080]",
		},
		{
			Name:   "720p",
			Label:  "Video - 720p",
			Format: "bestvideo[height<=720]+bestaudio/best[height<=720]/best[height<=720]",
		},
		{
			Name:   "480p",
			Label:  "Video - 480p",
			Format: "bestvideo[height<=480]+bestaudio/best[height<=480]/best[height<=480]",
		},
		{
			Name:         "audio-mp3",
			Label:        "Audio only (MP3)",
			Format:       "bestaudio/best",
			ExtractAudio: true,
		},
	}
}

// Load returns the builtins merged with user presets from a YAML file.
// A user preset with a builtin name overrides it.
func Load(path string) ([]Preset, error) {
	all := Builtins()

	if path == "" {
		return all, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, err
	}

	var user []Preset
	if err := yaml.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("invalid presets file %s: %w", path, err)
	}

	for _, p := range user {
		if p.Name == "" || p.Format == "" {
			continue
		}
		if i := index(all, p.Name); i >= 0 {
			all[i] = p
		} else {
			all = append(all, p)
		}
	}

	return all, nil
}

// Find resolves a preset by name, defaulting to the first builtin.
func Find(list []Preset, name string) Preset {
	if i := index(list, name); i >= 0 {
		return list[i]
	}
	return list[0]
}

func index(list []Preset, name string) int {
	for i, p := range list {
		if p.Name == name {
			return i
		}
	}
	return -1
}
