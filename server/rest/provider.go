package rest

import (
	"sync"

	"github.com/go-chi/chi/v5"
)

var (
	service *Service
	handler *Handler

	serviceOnce sync.Once
	handlerOnce sync.Once
)

func ProvideService(args *ContainerArgs) *Service {
	serviceOnce.Do(func() {
		service = NewService(args)
	})
	return service
}

func ProvideHandler(svc *Service) *Handler {
	handlerOnce.Do(func() {
		handler = &Handler{
			service: svc,
		}
	})
	return handler
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := ProvideHandler(ProvideService(args))

	return func(r chi.Router) {
		r.Post("/exec", h.Submit)
		r.Post("/check", h.CheckLink)
		r.Get("/running", h.Running)
		r.Get("/progress/{id}", h.Progress)
		r.Delete("/job/{id}", h.Cancel)
		r.Post("/cancel-all", h.CancelAll)
		r.Delete("/clear/{id}", h.Clear)
		r.Post("/clear-completed", h.ClearCompleted)

		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.UpdateSettings)
		r.Get("/presets", h.Presets)

		r.Get("/history", h.History)
		r.Get("/history/stats", h.HistoryStats)
		r.Delete("/history", h.ClearHistory)

		r.Get("/freespace", h.FreeSpace)
		r.Get("/tree", h.DirectoryTree)
		r.Post("/update-executable", h.UpdateExecutable)
	}
}
