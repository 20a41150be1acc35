package status

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"downpour/server/internal/job"
	"downpour/server/internal/kv"
	"downpour/server/rest"
)

// Report is the queue-wide view the presentation layer polls.
type Report struct {
	Pending    int  `json:"pending"`
	Active     int  `json:"active"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Cancelled  int  `json:"cancelled"`
	Downloader bool `json:"downloader_available"`
	FFmpeg     bool `json:"ffmpeg_available"`
}

func ApplyRouter(mdb *kv.Store, svc *rest.Service) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			var report Report
			report.Downloader, report.FFmpeg = svc.ToolsAvailable()

			for _, snap := range mdb.All() {
				switch snap.State {
				case job.StatePending:
					report.Pending++
				case job.StateActive:
					report.Active++
				case job.StateCompleted:
					report.Completed++
				case job.StateFailed:
					report.Failed++
				case job.StateCancelled:
					report.Cancelled++
				}
			}

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(report); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
	}
}
