package metadata

import (
	"encoding/json"
	"io"
)

type infoJSON struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Webpage   string  `json:"webpage_url"`
}

func decode(r io.Reader, meta *Metadata) error {
	var info infoJSON
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return err
	}

	meta.Title = info.Title
	meta.Uploader = info.Uploader
	meta.Duration = info.Duration
	meta.Thumbnail = info.Thumbnail
	meta.Webpage = info.Webpage

	return nil
}
