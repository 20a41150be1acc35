package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"downpour/server/internal/downloader"
	"downpour/server/settings"
)

type Handler struct {
	service *Service
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.service.Submit(req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, snap)
}

func (h *Handler) CheckLink(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	meta, err := h.service.CheckLink(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, meta)
}

func (h *Handler) Running(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.Running(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshots)
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Progress(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, "ok")
}

func (h *Handler) CancelAll(w http.ResponseWriter, r *http.Request) {
	h.service.CancelAll()
	writeJSON(w, "ok")
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(chi.URLParam(r, "id")); err != nil {
		status := http.StatusNotFound
		if errors.Is(err, ErrJobBusy) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, "ok")
}

func (h *Handler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	h.service.ClearCompleted()
	writeJSON(w, "ok")
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.service.Settings())
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var next settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.service.UpdateSettings(next)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, saved)
}

func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.service.Presets())
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.History(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.HistoryStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, "ok")
}

func (h *Handler) FreeSpace(w http.ResponseWriter, r *http.Request) {
	free, err := h.service.FreeSpace()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]uint64{"free": free})
}

func (h *Handler) DirectoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.DirectoryTree()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tree)
}

func (h *Handler) UpdateExecutable(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UpdateExecutable(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "ok")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, downloader.ErrInvalidLink):
		status = http.StatusBadRequest
	case errors.Is(err, downloader.ErrToolNotFound):
		status = http.StatusFailedDependency
	}

	http.Error(w, err.Error(), status)
}
