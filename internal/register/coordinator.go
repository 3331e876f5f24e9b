package register

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"github.com/MarcoPoloResearchLab/register/internal/view"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opLoad           = "register.load"
	opCreate         = "register.create"
	opSetApproval    = "register.set_approval"
	opDeleteOne      = "register.delete_one"
	opDeleteSelected = "register.delete_selected"

	reasonLoadFailed         = "load_failed"
	reasonValidationFailed   = "validation_failed"
	reasonWriteFailed        = "write_failed"
	reasonConfirmationFailed = "confirmation_failed"
	reasonUnknownToken       = "unknown_token"

	defaultMaxParallelDeletes = 4
)

var (
	// ErrUnknownAppointment indicates that no rendered row carries the token.
	ErrUnknownAppointment = errors.New("register: unknown appointment")

	errMissingStore     = errors.New("register: record store is required")
	errMissingAllocator = errors.New("register: identity allocator is required")
	errMissingView      = errors.New("register: view synchronizer is required")
)

// RecordStore is the durable appointment storage used by the coordinator.
type RecordStore interface {
	LoadAll(ctx context.Context) ([]appointments.Appointment, error)
	Insert(ctx context.Context, record appointments.Appointment) error
	SetApproved(ctx context.Context, token appointments.Token, approved bool) error
	Delete(ctx context.Context, token appointments.Token) error
}

// View is the rendered table the coordinator keeps in step with the store.
type View interface {
	RenderAll(records []appointments.Appointment)
	RenderOne(record appointments.Appointment)
	RemoveRow(token appointments.Token) bool
	Row(token appointments.Token) (view.Row, bool)
	SelectedTokens() []appointments.Token
	Notify(ctx context.Context, notice view.Notice)
}

type CoordinatorConfig struct {
	Store              RecordStore
	Allocator          *appointments.Allocator
	View               View
	Clock              func() time.Time
	Logger             *zap.Logger
	MaxParallelDeletes int
}

// Coordinator orders every user action as store write first, view update second.
// Mutations and reloads hold mu from the store write through the view update,
// so no reload or competing write can land between the two.
type Coordinator struct {
	mu                 sync.Mutex
	store              RecordStore
	allocator          *appointments.Allocator
	view               View
	clock              func() time.Time
	logger             *zap.Logger
	maxParallelDeletes int
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Allocator == nil {
		return nil, errMissingAllocator
	}
	if cfg.View == nil {
		return nil, errMissingView
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxParallel := cfg.MaxParallelDeletes
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelDeletes
	}
	return &Coordinator{
		store:              cfg.Store,
		allocator:          cfg.Allocator,
		view:               cfg.View,
		clock:              clock,
		logger:             logger,
		maxParallelDeletes: maxParallel,
	}, nil
}

// CreateResult reports the stored appointment and whether the form should be cleared.
type CreateResult struct {
	Record    appointments.Appointment
	FormReset bool
}

// DeleteResult reports the outcome of a confirmed or declined deletion.
type DeleteResult struct {
	Confirmed bool
	Deleted   []appointments.Token
	Failed    []appointments.Token
}

// Load reads every stored appointment, seeds the allocator and renders the table.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		c.logError(opLoad, reasonLoadFailed, err)
		return err
	}
	c.allocator.InitFromRecords(records)
	c.view.RenderAll(records)
	c.logger.Info("appointments loaded",
		zap.Int("count", len(records)),
		zap.Int64("next_token", c.allocator.Peek().Int64()))
	return nil
}

// Create stores a new appointment from the submitted form and renders its row.
// Incomplete forms are rejected before a token is allocated.
func (c *Coordinator) Create(ctx context.Context, values appointments.FormValues) (CreateResult, error) {
	normalized := values.Normalize()
	if err := normalized.Validate(); err != nil {
		c.logger.Debug("appointment form rejected",
			zap.String("operation", opCreate),
			zap.String("reason", reasonValidationFailed),
			zap.Error(err))
		return CreateResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.allocator.Next()
	record, err := appointments.NewAppointment(token, normalized, c.clock().UTC().Unix())
	if err != nil {
		return CreateResult{}, err
	}

	if err := c.store.Insert(ctx, record); err != nil {
		c.logError(opCreate, reasonWriteFailed, err, zap.Int64("token", token.Int64()))
		return CreateResult{}, err
	}

	c.view.RenderOne(record)
	return CreateResult{Record: record, FormReset: true}, nil
}

// SetApproval persists a new approval state for a rendered appointment.
// When the write fails the previous row is re-rendered, reverting the toggle.
func (c *Coordinator) SetApproval(ctx context.Context, token appointments.Token, approved bool) (appointments.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.view.Row(token)
	if !ok {
		c.logError(opSetApproval, reasonUnknownToken, ErrUnknownAppointment, zap.Int64("token", token.Int64()))
		return appointments.Appointment{}, fmt.Errorf("%w: %d", ErrUnknownAppointment, token)
	}

	updated := row.Record
	updated.Approved = approved
	if err := c.store.SetApproved(ctx, token, approved); err != nil {
		if errors.Is(err, appointments.ErrAppointmentNotFound) {
			c.logError(opSetApproval, reasonUnknownToken, err, zap.Int64("token", token.Int64()))
			return appointments.Appointment{}, fmt.Errorf("%w: %d: %w", ErrUnknownAppointment, token, err)
		}
		c.logError(opSetApproval, reasonWriteFailed, err,
			zap.Int64("token", token.Int64()),
			zap.Bool("approved", approved))
		c.view.RenderOne(row.Record)
		return row.Record, err
	}

	c.view.RenderOne(updated)
	return updated, nil
}

// DeleteOne asks for confirmation and then deletes a single appointment.
func (c *Coordinator) DeleteOne(ctx context.Context, token appointments.Token, confirmer Confirmer) (DeleteResult, error) {
	if _, ok := c.view.Row(token); !ok {
		c.logError(opDeleteOne, reasonUnknownToken, ErrUnknownAppointment, zap.Int64("token", token.Int64()))
		return DeleteResult{}, fmt.Errorf("%w: %d", ErrUnknownAppointment, token)
	}

	confirmed, err := confirmer.Confirm(ctx, DeleteOnePrompt())
	if err != nil {
		c.logConfirmationError(opDeleteOne, err, zap.Int64("token", token.Int64()))
		return DeleteResult{}, err
	}
	if !confirmed {
		return DeleteResult{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.view.Row(token); !ok {
		c.logError(opDeleteOne, reasonUnknownToken, ErrUnknownAppointment, zap.Int64("token", token.Int64()))
		return DeleteResult{Confirmed: true}, fmt.Errorf("%w: %d", ErrUnknownAppointment, token)
	}
	if err := c.store.Delete(ctx, token); err != nil {
		c.logError(opDeleteOne, reasonWriteFailed, err, zap.Int64("token", token.Int64()))
		return DeleteResult{Confirmed: true, Failed: []appointments.Token{token}}, err
	}

	c.view.RemoveRow(token)
	c.view.Notify(ctx, view.Notice{
		Title: "Deleted!",
		Text:  "The appointment has been deleted.",
		Icon:  "success",
	})
	return DeleteResult{Confirmed: true, Deleted: []appointments.Token{token}}, nil
}

// DeleteSelected deletes every selected row after a single confirmation.
// Each token is deleted independently; failures do not stop the others and
// are returned together.
func (c *Coordinator) DeleteSelected(ctx context.Context, confirmer Confirmer) (DeleteResult, error) {
	tokens := c.view.SelectedTokens()
	if len(tokens) == 0 {
		return DeleteResult{}, nil
	}

	confirmed, err := confirmer.Confirm(ctx, DeleteSelectedPrompt())
	if err != nil {
		c.logConfirmationError(opDeleteSelected, err, zap.Int("selected", len(tokens)))
		return DeleteResult{}, err
	}
	if !confirmed {
		return DeleteResult{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tokens = slices.DeleteFunc(tokens, func(token appointments.Token) bool {
		_, rendered := c.view.Row(token)
		return !rendered
	})

	var (
		mu       sync.Mutex
		result   = DeleteResult{Confirmed: true}
		combined error
	)
	group := new(errgroup.Group)
	group.SetLimit(c.maxParallelDeletes)
	for _, token := range tokens {
		group.Go(func() error {
			if err := c.store.Delete(ctx, token); err != nil {
				c.logError(opDeleteSelected, reasonWriteFailed, err, zap.Int64("token", token.Int64()))
				mu.Lock()
				result.Failed = append(result.Failed, token)
				combined = multierr.Append(combined, fmt.Errorf("token %d: %w", token, err))
				mu.Unlock()
				return nil
			}
			c.view.RemoveRow(token)
			mu.Lock()
			result.Deleted = append(result.Deleted, token)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	slices.Sort(result.Deleted)
	slices.Sort(result.Failed)
	if len(result.Deleted) > 0 {
		c.view.Notify(ctx, view.Notice{
			Title: "Deleted!",
			Text:  deletedText(len(result.Deleted)),
			Icon:  "success",
		})
	}
	return result, combined
}

func deletedText(count int) string {
	if count == 1 {
		return "The appointment has been deleted."
	}
	return fmt.Sprintf("%d appointments have been deleted.", count)
}

// logConfirmationError keeps the unanswered-prompt handshake out of the error log.
func (c *Coordinator) logConfirmationError(operation string, err error, fields ...zap.Field) {
	if errors.Is(err, ErrConfirmationRequired) {
		c.logger.Debug("confirmation pending", append(fields, zap.String("operation", operation))...)
		return
	}
	c.logError(operation, reasonConfirmationFailed, err, fields...)
}

func (c *Coordinator) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("register coordinator error", attrs...)
}
