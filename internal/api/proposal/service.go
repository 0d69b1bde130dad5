// Package proposal asks the generative service to turn free-text intent into
// a schema-constrained set of candidate trip changes.
package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/wanderfolk/go-trip-assistant/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Propose(ctx context.Context, tripCtx *types.TripContext, userQuery string, history []types.ConversationTurn) (*types.Proposal, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	generator   Generator
	temperature float32
}

func NewServiceImpl(generator Generator, temperature float32, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		generator:   generator,
		temperature: temperature,
	}
}

// Propose submits the trip context, conversation history and user request to
// the generative service and returns either candidate change operations or
// clarification questions. No semantic validation happens here; the change
// application engine validates and resolves every approved operation.
func (s *ServiceImpl) Propose(ctx context.Context, tripCtx *types.TripContext, userQuery string, history []types.ConversationTurn) (*types.Proposal, error) {
	ctx, span := otel.Tracer("ProposalService").Start(ctx, "Propose", trace.WithAttributes(
		attribute.String("trip.id", tripCtx.ID.String()),
		attribute.Int("history.turns", len(history)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Propose"), slog.String("tripID", tripCtx.ID.String()))

	if strings.TrimSpace(userQuery) == "" {
		span.SetStatus(codes.Error, "Empty query")
		return nil, fmt.Errorf("user query is required: %w", types.ErrValidation)
	}

	ctxJSON, err := json.MarshalIndent(tripCtx, "", "  ")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Context serialization failed")
		return nil, fmt.Errorf("failed to serialize trip context: %w", err)
	}

	prompt := buildProposalPrompt(string(ctxJSON), userQuery, history)

	l.DebugContext(ctx, "Requesting change proposal", slog.Int("prompt_length", len(prompt)))
	raw, err := s.generator.GenerateContent(ctx, prompt, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](s.temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		l.ErrorContext(ctx, "Generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation failed")
		return nil, fmt.Errorf("proposal generation failed: %w", err)
	}

	proposal, err := parseProposal(raw)
	if err != nil {
		l.ErrorContext(ctx, "Malformed proposal output", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Malformed proposal")
		return nil, err
	}

	l.InfoContext(ctx, "Proposal generated",
		slog.String("response_type", proposal.ResponseType),
		slog.Int("changes", len(proposal.Changes)),
		slog.Int("questions", len(proposal.Questions)))
	span.SetStatus(codes.Ok, "Proposal generated")
	return proposal, nil
}
