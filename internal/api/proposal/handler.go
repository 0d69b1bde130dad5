package proposal

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
	"github.com/wanderfolk/go-trip-assistant/internal/api/tripctx"
	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

type Handler struct {
	logger     *slog.Logger
	contextSvc tripctx.Service
	service    Service
}

func NewHandler(contextSvc tripctx.Service, service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		contextSvc: contextSvc,
		service:    service,
	}
}

type proposeRequest struct {
	Query   string                   `json:"query"`
	History []types.ConversationTurn `json:"history,omitempty"`
}

// ProposeChanges handles POST /trips/{tripID}/assistant/propose.
func (h *Handler) ProposeChanges(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProposalHandler").Start(r.Context(), "ProposeChanges")
	defer span.End()

	l := h.logger.With(slog.String("method", "ProposeChanges"))

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

	var req proposeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tripCtx, err := h.contextSvc.BuildContext(ctx, tripID, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to build trip context", slog.Any("error", err))
		span.RecordError(err)
		switch {
		case errors.Is(err, types.ErrNotFound):
			span.SetStatus(codes.Error, "Trip not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "trip not found")
		case errors.Is(err, types.ErrUnauthorized):
			span.SetStatus(codes.Error, "Unauthorized")
			api.ErrorResponse(w, r, http.StatusForbidden, "trip not owned by caller")
		default:
			span.SetStatus(codes.Error, "Context build failed")
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load trip context")
		}
		return
	}

	proposal, err := h.service.Propose(ctx, tripCtx, req.Query, req.History)
	if err != nil {
		l.ErrorContext(ctx, "Proposal failed", slog.Any("error", err))
		span.RecordError(err)
		switch {
		case errors.Is(err, types.ErrValidation):
			span.SetStatus(codes.Error, "Invalid query")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrGeneration):
			span.SetStatus(codes.Error, "Malformed generation")
			api.ErrorResponse(w, r, http.StatusBadGateway, "assistant returned malformed output")
		default:
			span.SetStatus(codes.Error, "Proposal failed")
			api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to generate proposal")
		}
		return
	}

	span.SetStatus(codes.Ok, "Proposal returned")
	api.WriteJSONResponse(w, r, http.StatusOK, proposal)
}
