package jobs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/gramy/gramy/internal/platform/httpx"
)

// Handler serves queue depth for every Gramy queue.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed_today"`
	Processed int    `json:"processed_today"`
}

type healthResponse struct {
	Queues []queueHealth `json:"queues"`
}

// A queue nobody has enqueued to yet does not exist in Redis; it reports zeros.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Queues: make([]queueHealth, 0, len(Queues))}
	for _, q := range Queues {
		row := queueHealth{Queue: q.Name}
		if h.inspector != nil {
			info, err := h.inspector.GetQueueInfo(q.Name)
			switch {
			case errors.Is(err, asynq.ErrQueueNotFound):
			case err != nil:
				h.logger.Warn("jobs health", slog.String("queue", q.Name), slog.Any("error", err))
				httpx.Error(w, http.StatusServiceUnavailable, "")
				return
			default:
				row = queueHealth{
					Queue:     info.Queue,
					Pending:   info.Pending,
					Active:    info.Active,
					Retry:     info.Retry,
					Failed:    info.Failed,
					Processed: info.Processed,
				}
			}
		}
		resp.Queues = append(resp.Queues, row)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
