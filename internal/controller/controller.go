// Package controller composes the concierge page's interactive parts: modal
// dialogs, toast notifications, scroll animations, form validation and the
// todo board. A Controller is built once per page session and handed to the
// code that renders it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/animation"
	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/form"
	"github.com/Tomlord1122/concierge-backend/internal/modal"
	"github.com/Tomlord1122/concierge-backend/internal/notify"
	"github.com/Tomlord1122/concierge-backend/internal/service"
)

// BookingModalID is the booking dialog registered by every controller.
const BookingModalID = "booking-modal"

var bookingFocusables = []string{
	"booking-close", "service-concierge", "service-chauffeur", "service-security",
	"first-name", "last-name", "email", "phone", "date", "message",
	"booking-cancel", "booking-submit",
}

const (
	bookingSuccessMessage = "Thank you! Your booking request has been submitted. We will contact you within 24 hours."
	bookingFailureMessage = "We could not submit your booking request. Please try again."
	importFailureMessage  = "Error importing file. Please check the format."
)

var (
	// ErrInvalidBooking is returned when a booking form fails validation.
	ErrInvalidBooking = errors.New("booking form is invalid")

	// ErrUnknownAction is returned by Action for unknown action names.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidAction is returned when an action is missing a parameter.
	ErrInvalidAction = errors.New("invalid action parameters")

	// ErrNoSubmitter is returned by SubmitBooking when the controller was
	// built without a Submitter.
	ErrNoSubmitter = errors.New("no booking submitter configured")
)

// Config carries a controller's dependencies. Nil views discard updates, a nil
// Submitter rejects every booking and a nil Notifications gets a fresh queue.
type Config struct {
	Todos         service.TodoService
	Notifications *notify.Queue
	Submitter     Submitter
	Logger        *zap.Logger

	ModalView     modal.View
	AnimationView animation.View
	ErrorView     form.ErrorView
	Animation     animation.Config
	Now           func() time.Time
}

// Controller is the interactive UI controller for one page session.
type Controller struct {
	todos         service.TodoService
	notifications *notify.Queue
	submitter     Submitter
	logger        *zap.Logger

	modals     *modal.Manager
	animations *animation.Coordinator
	forms      *form.Validator
	now        func() time.Time
}

// New builds a controller and registers the booking modal.
func New(cfg Config) *Controller {
	if cfg.ModalView == nil {
		cfg.ModalView = Discard
	}
	if cfg.AnimationView == nil {
		cfg.AnimationView = Discard
	}
	if cfg.ErrorView == nil {
		cfg.ErrorView = Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Animation == (animation.Config{}) {
		cfg.Animation = animation.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Submitter == nil {
		cfg.Submitter = SubmitterFunc(func(context.Context, BookingRequest) error {
			return ErrNoSubmitter
		})
	}
	if cfg.Notifications == nil {
		cfg.Notifications = notify.New(cfg.Logger)
	}

	c := &Controller{
		todos:         cfg.Todos,
		notifications: cfg.Notifications,
		submitter:     cfg.Submitter,
		logger:        cfg.Logger,
		modals:        modal.NewManager(cfg.ModalView),
		animations:    animation.NewCoordinator(cfg.Animation, cfg.AnimationView, cfg.Now),
		forms:         form.New(form.WithClock(cfg.Now), form.WithErrorView(cfg.ErrorView)),
		now:           cfg.Now,
	}
	c.modals.Register(modal.Modal{ID: BookingModalID, Focusables: bookingFocusables})
	return c
}

// Modals returns the modal manager holding the booking dialog.
func (c *Controller) Modals() *modal.Manager { return c.modals }

// Animations returns the scroll and reveal coordinator.
func (c *Controller) Animations() *animation.Coordinator { return c.animations }

// Forms returns the validator used for the booking form.
func (c *Controller) Forms() *form.Validator { return c.forms }

// Notifications returns the toast queue the controller announces results on.
func (c *Controller) Notifications() *notify.Queue { return c.notifications }

// Todos returns the todo service behind the board.
func (c *Controller) Todos() service.TodoService { return c.todos }

// OpenBookingModal shows the booking dialog.
func (c *Controller) OpenBookingModal() bool {
	return c.modals.Open(BookingModalID)
}

// BookingOutcome reports what happened to a booking submission.
type BookingOutcome struct {
	Results      form.Results         `json:"results"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Reset        bool                 `json:"reset"`
}

// SubmitBooking validates every field and, if all pass, hands the form to the
// submitter. Nothing is submitted when validation fails.
func (c *Controller) SubmitBooking(ctx context.Context, fields []form.Field) (BookingOutcome, error) {
	results, ok := c.forms.ValidateForm(fields)
	out := BookingOutcome{Results: results}
	if !ok {
		return out, ErrInvalidBooking
	}

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Name] = strings.TrimSpace(f.Value)
	}
	req := BookingRequest{Fields: values, SubmittedAt: c.now().UTC()}

	if err := c.submitter.Submit(ctx, req); err != nil {
		c.logger.Error("booking submission failed", zap.Error(err))
		n := c.notifications.Show(bookingFailureMessage, domain.KindError, 0)
		out.Notification = &n
		return out, fmt.Errorf("submit booking: %w", err)
	}

	n := c.notifications.Show(bookingSuccessMessage, domain.KindSuccess, 0)
	out.Notification = &n
	c.modals.CloseAll()
	out.Reset = true
	return out, nil
}

// ImportTodos imports a todo file and announces the result.
func (c *Controller) ImportTodos(ctx context.Context, format service.Format, r io.Reader) (int, error) {
	n, err := c.todos.ImportTodos(ctx, format, r)
	if err != nil {
		c.notifications.Show(importFailureMessage, domain.KindError, 0)
		return 0, err
	}
	c.notifications.Show(fmt.Sprintf("Successfully imported %d todos", n), domain.KindSuccess, 0)
	return n, nil
}

// Action runs one of the page's call-to-action buttons.
func (c *Controller) Action(name string, params map[string]string) (domain.Notification, error) {
	var (
		msg  string
		kind = domain.KindInfo
	)
	switch name {
	case "exclusive-access":
		msg, kind = "Exclusive access request received. Our team will contact you within 24 hours.", domain.KindSuccess
	case "request-access":
		msg, kind = "Access request submitted. Welcome to Veridian Private Concierge.", domain.KindSuccess
	case "view-demo":
		msg = "Demo loading... Experience the power of AI wealth management."
	case "select-membership":
		tier := strings.TrimSpace(params["tier"])
		if tier == "" {
			return domain.Notification{}, fmt.Errorf("%w: select-membership needs a tier", ErrInvalidAction)
		}
		msg = capitalize(tier) + " membership selected. Redirecting to secure checkout..."
	case "connect":
		msg, kind = "Connection request received. Our elite team will contact you shortly.", domain.KindSuccess
	case "search-collaborators":
		msg = fmt.Sprintf("Searching for collaborators with expertise: %s, location: %s, focus: %s",
			orAny(params["expertise"]), orAny(params["location"]), orAny(params["focus"]))
	default:
		return domain.Notification{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return c.notifications.Show(msg, kind, 0), nil
}

func orAny(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "Any"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
