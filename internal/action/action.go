// Package action runs mutations and queries behind one uniform pipeline:
// resolve auth, validate, authorize, perform one remote call, invalidate,
// and report a Result that never carries a raw error or panic to the caller.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/observability"
	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/shared"
)

// DefaultFailure is shown for unexpected faults.
const DefaultFailure = "Something went wrong. Please try again."

// AuthMode selects the auth requirement of an action.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthOptional
	AuthRequired
	AuthAdmin
)

// Result is the outcome handed back to handlers and API clients.
type Result[T any] struct {
	Success bool        `json:"success"`
	Data    T           `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    shared.Kind `json:"-"`
}

// Ok wraps a successful value.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail converts err into a failed Result.
func Fail[T any](err error) Result[T] {
	return Result[T]{Error: shared.UserSafeMessage(err), Kind: shared.KindOf(err)}
}

// Err returns the failure as a classified error, nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return &shared.Error{Kind: r.Kind, Message: r.Error}
}

// Status maps the outcome to an HTTP status code.
func (r Result[T]) Status() int {
	if r.Success {
		return http.StatusOK
	}
	return httpx.StatusFor(r.Kind)
}

// Spec describes one mutation.
type Spec[In, Out any] struct {
	Name string
	Auth AuthMode
	// Validate runs before struct-tag validation and may return domain messages.
	Validate func(ctx context.Context, in In) error
	// Authorize loads guarded resources and applies access rules.
	Authorize func(ctx context.Context, ac authctx.Context, in In) error
	// Write performs exactly one remote call.
	Write func(ctx context.Context, ac authctx.Context, in In) (Out, error)
	// Invalidate names the view paths the write may have made stale.
	Invalidate func(ac authctx.Context, in In, out Out) []invalidate.Path
	// FailureMessage replaces DefaultFailure for remote errors.
	FailureMessage string
	// ConflictMessage is shown for unique constraint violations.
	ConflictMessage string
}

// Query describes a read with the same auth and validation pipeline.
type Query[In, Out any] struct {
	Name           string
	Auth           AuthMode
	Validate       func(ctx context.Context, in In) error
	Authorize      func(ctx context.Context, ac authctx.Context, in In) error
	Read           func(ctx context.Context, ac authctx.Context, in In) (Out, error)
	FailureMessage string
}

// Resolver is the part of authctx.Resolver the runner needs.
type Resolver interface {
	Resolve(ctx context.Context) (authctx.Context, error)
}

// Invalidator marks view paths stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...invalidate.Path)
}

// Runner carries the shared dependencies of every action.
type Runner struct {
	resolver    Resolver
	validate    *validator.Validate
	invalidator Invalidator
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(resolver Resolver, invalidator Invalidator, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &Runner{resolver: resolver, validate: v, invalidator: invalidator, metrics: metrics, logger: logger}
}

// Run executes spec against in.
func Run[In, Out any](ctx context.Context, r *Runner, spec Spec[In, Out], in In) (result Result[Out]) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("action panic", slog.String("action", spec.Name), slog.Any("panic", rec))
			r.metrics.ObserveAction(spec.Name, "panic")
			result = Result[Out]{Error: DefaultFailure, Kind: shared.KindUnknown}
		}
	}()

	ac, err := prepare(ctx, r, spec.Auth, spec.Validate, spec.Authorize, in)
	if err != nil {
		return finish[Out](r, spec.Name, err)
	}

	out, err := spec.Write(ctx, ac, in)
	if err != nil {
		return finish[Out](r, spec.Name, classify(err, spec.FailureMessage, spec.ConflictMessage))
	}

	if spec.Invalidate != nil && r.invalidator != nil {
		r.invalidator.Invalidate(ctx, spec.Invalidate(ac, in, out)...)
	}
	r.metrics.ObserveAction(spec.Name, "success")
	return Ok(out)
}

// Authenticate applies the AuthRequired check alone. JSON handlers call it
// before reading a body so anonymous callers get 401 regardless of payload.
func (r *Runner) Authenticate(ctx context.Context) Result[struct{}] {
	ac, err := r.resolver.Resolve(ctx)
	if err == nil {
		err = authctx.Authenticated(ac)
	}
	if err != nil {
		return Fail[struct{}](err)
	}
	return Ok(struct{}{})
}

// RunQuery executes a read-only query.
func RunQuery[In, Out any](ctx context.Context, r *Runner, q Query[In, Out], in In) (result Result[Out]) {
	return Run(ctx, r, Spec[In, Out]{
		Name:           q.Name,
		Auth:           q.Auth,
		Validate:       q.Validate,
		Authorize:      q.Authorize,
		Write:          q.Read,
		FailureMessage: q.FailureMessage,
	}, in)
}

func prepare[In any](
	ctx context.Context,
	r *Runner,
	mode AuthMode,
	validate func(context.Context, In) error,
	authorize func(context.Context, authctx.Context, In) error,
	in In,
) (authctx.Context, error) {
	var ac authctx.Context
	if mode != AuthNone {
		resolved, err := r.resolver.Resolve(ctx)
		if err != nil {
			return ac, err
		}
		ac = resolved
	}
	switch mode {
	case AuthRequired:
		if err := authctx.Authenticated(ac); err != nil {
			return ac, err
		}
	case AuthAdmin:
		if err := authctx.Admin(ac); err != nil {
			return ac, err
		}
	}

	if validate != nil {
		if err := validate(ctx, in); err != nil {
			return ac, err
		}
	}
	if err := r.validateStruct(ctx, in); err != nil {
		return ac, err
	}

	if authorize != nil {
		if err := authorize(ctx, ac, in); err != nil {
			return ac, err
		}
	}
	return ac, nil
}

func (r *Runner) validateStruct(ctx context.Context, in any) error {
	v := reflect.ValueOf(in)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	err := r.validate.StructCtx(ctx, v.Interface())
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return shared.Invalid(fe.Field(), fieldMessage(fe))
	}
	return shared.Invalid("", "Invalid input")
}

// classify keeps typed errors and wraps everything else as a remote failure.
func classify(err error, failure, conflict string) error {
	var typed *shared.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if conflict != "" && db.IsUniqueViolation(err) {
		return shared.Remote(err, conflict)
	}
	if failure == "" {
		failure = DefaultFailure
	}
	return shared.Remote(err, failure)
}

func finish[Out any](r *Runner, name string, err error) Result[Out] {
	kind := shared.KindOf(err)
	r.metrics.ObserveAction(name, kind.String())
	switch kind {
	case shared.KindRemote, shared.KindUnknown:
		r.logger.Error("action failed", slog.String("action", name), slog.Any("error", err))
	default:
		r.logger.Debug("action rejected", slog.String("action", name), slog.String("kind", kind.String()), slog.Any("error", err))
	}
	return Fail[Out](err)
}

func fieldMessage(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s cannot exceed %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return label + " must be a valid email address"
	case "uuid", "uuid4":
		return label + " is invalid"
	default:
		return label + " is invalid"
	}
}

// humanize turns a json field name such as hours_played into "Hours played".
func humanize(field string) string {
	if field == "" {
		return "Value"
	}
	s := strings.ReplaceAll(field, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
