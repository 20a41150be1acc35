package downloader

import (
	"encoding/json"
	"strings"

	"downpour/server/internal/job"
)

const downloadTemplate = `download:
{
	"eta":%(progress.eta)s,
	"percentage":"%(progress._percent_str)s",
	"speed":%(progress.speed)s
}`

// filename not returning the correct extension after postprocess
const postprocessTemplate = `postprocess:
{
	"filepath":"%(info.filepath)s"
}`

var templateReplacer = strings.NewReplacer("\n", "", "\t", "", " ", "")

func progressTemplates() []string {
	return []string{
		"--progress-template", templateReplacer.Replace(downloadTemplate),
		"--progress-template", templateReplacer.Replace(postprocessTemplate),
	}
}

type progressLine struct {
	Eta        float64 `json:"eta"`
	Percentage string  `json:"percentage"`
	Speed      float64 `json:"speed"`
}

type postprocessLine struct {
	FilePath string `json:"filepath"`
}

// ProgressEvent is one parsed line of the subprocess output stream.
type ProgressEvent struct {
	Progress  *job.Progress
	SavedPath string
}

// ParseProgressLine decodes a single stdout line. Lines that match
// neither template are reported as not-ok and ignored by the caller,
// a malformed line is never fatal to the job.
func ParseProgressLine(line []byte) (ProgressEvent, bool) {
	var p progressLine
	if err := json.Unmarshal(line, &p); err == nil && p.Percentage != "" {
		return ProgressEvent{
			Progress: &job.Progress{
				Percentage: strings.TrimSpace(p.Percentage),
				Speed:      p.Speed,
				ETA:        p.Eta,
			},
		}, true
	}

	var pp postprocessLine
	if err := json.Unmarshal(line, &pp); err == nil && pp.FilePath != "" {
		return ProgressEvent{SavedPath: pp.FilePath}, true
	}

	return ProgressEvent{}, false
}
