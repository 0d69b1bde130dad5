package changes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	appMiddleware "github.com/wanderfolk/go-trip-assistant/app/middleware"
	"github.com/wanderfolk/go-trip-assistant/internal/api"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

type Handler struct {
	logger *slog.Logger
	engine Engine
}

func NewHandler(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		engine: engine,
	}
}

type applyRequest struct {
	Changes []types.ChangeOperation `json:"changes"`
}

// ApplyChanges handles POST /trips/{tripID}/assistant/apply.
func (h *Handler) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChangesHandler").Start(r.Context(), "ApplyChanges")
	defer span.End()

	l := h.logger.With(slog.String("method", "ApplyChanges"))

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		l.WarnContext(ctx, "Invalid trip id", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid trip id")
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid trip id")
		return
	}

	userID, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok {
		span.SetStatus(codes.Error, "Missing user id")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req applyRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.engine.Apply(ctx, tripID, userID, req.Changes)
	if err != nil {
		l.ErrorContext(ctx, "Apply failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Apply failed")
		api.ErrorResponse(w, r, statusForError(err), err.Error())
		return
	}

	span.SetStatus(codes.Ok, "Changes applied")
	api.WriteJSONResponse(w, r, http.StatusOK, report)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrMissingIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
