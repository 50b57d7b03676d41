package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/events"
	"example.com/ipmt/internal/personnel"
)

// Store is the subset of persistence the ingest handler writes through.
type Store interface {
	domain.UnitRepository
	domain.RecordRepository
}

// errRejected marks events that are well formed but cannot be stored.
var errRejected = errors.New("event rejected")

// IngestHandler stores request and accomplishment events as source records.
// Other event types, including the service's own row_saved events, are ignored.
type IngestHandler struct {
	store    Store
	resolver *personnel.Resolver
	logger   *zap.Logger
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(store Store, resolver *personnel.Resolver, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{store: store, resolver: resolver, logger: logger}
}

// Handle implements Handler. Rejected events are logged and acknowledged;
// only storage failures are returned.
func (h *IngestHandler) Handle(ctx context.Context, msg Message) error {
	var err error
	switch msg.EventType {
	case events.TypeRequestCompleted:
		err = h.handleRequest(ctx, msg.Payload)
	case events.TypeAccomplishmentRecorded:
		err = h.handleAccomplishment(ctx, msg.Payload)
	default:
		return nil
	}
	if errors.Is(err, errRejected) || errors.Is(err, domain.ErrUnitNotFound) {
		h.logger.Warn("event skipped",
			zap.String("event_type", msg.EventType),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		recordSkipped(msg.EventType, skipReason(err))
		return nil
	}
	return err
}

func skipReason(err error) string {
	if errors.Is(err, domain.ErrUnitNotFound) {
		return "unknown_unit"
	}
	return "invalid"
}

func (h *IngestHandler) handleRequest(ctx context.Context, payload json.RawMessage) error {
	var evt events.RequestCompleted
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	if strings.TrimSpace(evt.RequestID) == "" {
		return fmt.Errorf("%w: missing request_id", errRejected)
	}

	rec := &domain.RequestRecord{
		ID:          evt.RequestID,
		Description: evt.Description,
		Status:      domain.ParseStatus(evt.Status),
		Rating:      evt.Rating,
		Notes:       evt.Notes,
		CreatedAt:   evt.CreatedAt,
		CompletedAt: evt.CompletedAt,
	}
	if rec.Status == "" {
		rec.Status = domain.StatusCompleted
	}
	if evt.Unit != "" {
		unit, err := h.unit(ctx, evt.Unit)
		if err != nil {
			return err
		}
		rec.Unit = unit
	}
	if name := strings.TrimSpace(evt.RequestingOffice); name != "" {
		office, err := h.office(ctx, name)
		if err != nil {
			return err
		}
		rec.Office = office
	}
	people, err := h.people(ctx, evt.Personnel)
	if err != nil {
		return err
	}
	rec.Personnel = people
	return h.store.SaveRequest(ctx, rec)
}

func (h *IngestHandler) handleAccomplishment(ctx context.Context, payload json.RawMessage) error {
	var evt events.AccomplishmentRecorded
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	if strings.TrimSpace(evt.RecordID) == "" {
		return fmt.Errorf("%w: missing record_id", errRejected)
	}
	started, err := time.Parse(events.DateLayout, evt.DateStarted)
	if err != nil {
		return fmt.Errorf("%w: date_started: %v", errRejected, err)
	}
	unit, err := h.unit(ctx, evt.Unit)
	if err != nil {
		return err
	}

	rec := &domain.AccomplishmentRecord{
		ID:               evt.RecordID,
		Unit:             unit,
		RequestingOffice: evt.RequestingOffice,
		DateStarted:      started,
		ActivityName:     evt.ActivityName,
		Description:      evt.Description,
		Status:           domain.ParseStatus(evt.Status),
		Rating:           evt.Rating,
		MaterialCost:     evt.MaterialCost,
		LaborCost:        evt.LaborCost,
		ControlNumber:    evt.ControlNumber,
	}
	if evt.DateCompleted != "" {
		completed, err := time.Parse(events.DateLayout, evt.DateCompleted)
		if err != nil {
			return fmt.Errorf("%w: date_completed: %v", errRejected, err)
		}
		rec.DateCompleted = &completed
	}
	if evt.RequestID != "" {
		linked, err := h.store.GetRecord(ctx, evt.RequestID)
		if err != nil {
			return err
		}
		req, ok := linked.(*domain.RequestRecord)
		if !ok {
			return fmt.Errorf("%w: request %s not found", errRejected, evt.RequestID)
		}
		rec.Request = req
	}
	if rec.Personnel, err = h.people(ctx, evt.Personnel); err != nil {
		return err
	}
	return h.store.SaveAccomplishment(ctx, rec)
}

func (h *IngestHandler) unit(ctx context.Context, name string) (*domain.Unit, error) {
	unit, err := h.store.FindUnitByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnitNotFound, name)
	}
	return unit, nil
}

func (h *IngestHandler) office(ctx context.Context, name string) (*domain.Office, error) {
	office, err := h.store.FindOfficeByName(ctx, name)
	if err != nil || office != nil {
		return office, err
	}
	saved, err := h.store.SaveOffice(ctx, domain.Office{Name: name})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (h *IngestHandler) people(ctx context.Context, identifiers []string) ([]domain.Person, error) {
	people, skipped, err := h.resolver.ResolveAll(ctx, identifiers)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		h.logger.Info("unresolved personnel dropped", zap.Strings("identifiers", skipped))
	}
	return people, nil
}
