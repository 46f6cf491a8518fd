// Package query runs the interactive info-country and route queries on top
// of a loaded knowledge base.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/mapengine/core"
	"github.com/signalsfoundry/mapengine/internal/console"
	"github.com/signalsfoundry/mapengine/internal/logging"
	"github.com/signalsfoundry/mapengine/internal/observability"
	"github.com/signalsfoundry/mapengine/kb"
	"github.com/signalsfoundry/mapengine/model"
)

var (
	// ErrInputClosed is returned when the line source is exhausted before a
	// query could complete.
	ErrInputClosed = errors.New("input closed")

	// ErrTooManyAttempts is returned when MaxAttempts invalid names were
	// entered in a row.
	ErrTooManyAttempts = errors.New("too many invalid country names")
)

// Store is the read side of the knowledge base used by queries.
type Store interface {
	core.Graph
	Lookup(name string) kb.LookupResult
}

// Options configures a Service. Zero values are usable.
type Options struct {
	Log     logging.Logger
	Metrics *observability.QueryCollector

	// MaxAttempts bounds how many names are read per prompt. Zero means
	// unlimited.
	MaxAttempts int
}

// Service answers queries by prompting on a LineSource and reporting on a
// LineSink.
type Service struct {
	store       Store
	in          console.LineSource
	out         console.LineSink
	log         logging.Logger
	metrics     *observability.QueryCollector
	maxAttempts int
}

// NewService wires a Service over store with the given console endpoints.
func NewService(store Store, in console.LineSource, out console.LineSink, opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = logging.Noop()
	}
	return &Service{
		store:       store,
		in:          in,
		out:         out,
		log:         log,
		metrics:     opts.Metrics,
		maxAttempts: opts.MaxAttempts,
	}
}

// InfoCountry prompts for a country until a registered one is entered and
// prints its facts.
func (s *Service) InfoCountry(ctx context.Context) (model.Country, error) {
	start := time.Now()
	ctx = s.withQueryLogger(ctx)
	ctx, span := observability.StartSpan(ctx, "query.info_country")
	defer span.End()

	country, err := s.resolveCountry(ctx, observability.CommandInfoCountry, PromptCountry)
	if err != nil {
		s.finish(ctx, observability.CommandInfoCountry, outcomeFor(err), start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.Country{}, err
	}

	s.out.Println(FormatCountry(country))
	span.SetAttributes(attribute.String("country", country.Name))
	s.finish(ctx, observability.CommandInfoCountry, observability.OutcomeFound, start, nil)
	return country, nil
}

// Route prompts for a source and a destination and prints the fastest route
// between them, the continents it crosses and the taxes paid on entry.
func (s *Service) Route(ctx context.Context) (core.RoutePlan, error) {
	start := time.Now()
	ctx = s.withQueryLogger(ctx)
	ctx, span := observability.StartSpan(ctx, "query.route")
	defer span.End()

	fail := func(err error) (core.RoutePlan, error) {
		s.finish(ctx, observability.CommandRoute, outcomeFor(err), start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return core.RoutePlan{}, err
	}

	source, err := s.resolveCountry(ctx, observability.CommandRoute, PromptSource)
	if err != nil {
		return fail(err)
	}
	destination, err := s.resolveCountry(ctx, observability.CommandRoute, PromptDestination)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(
		attribute.String("source", source.Name),
		attribute.String("destination", destination.Name),
	)

	plan, err := core.PlanRoute(s.store, source.Name, destination.Name)
	if err != nil {
		return fail(err)
	}

	outcome := s.report(plan)
	span.SetAttributes(
		attribute.String("status", plan.Status.String()),
		attribute.Int("hops", plan.Hops()),
		attribute.Int("tax", plan.Tax),
	)
	if plan.Status == core.RouteFound {
		s.metrics.ObserveRoute(plan.Hops(), plan.Tax)
	}
	s.finish(ctx, observability.CommandRoute, outcome, start, nil,
		logging.String("source", plan.Source),
		logging.String("destination", plan.Destination),
		logging.Int("hops", plan.Hops()),
	)
	return plan, nil
}

// report prints plan and returns the metrics outcome label.
func (s *Service) report(plan core.RoutePlan) string {
	switch plan.Status {
	case core.RouteSameCountry:
		s.out.Println(msgNoCrossborder)
		return observability.OutcomeSameCountry
	case core.RouteNotFound:
		s.out.Println(fmt.Sprintf(msgNoRoute, plan.Source, plan.Destination))
		return observability.OutcomeNoRoute
	default:
		s.out.Println(fmt.Sprintf(msgFastestRoute, bracketList(plan.Path)))
		s.out.Println(fmt.Sprintf(msgContinents, bracketList(plan.Continents)))
		s.out.Println(fmt.Sprintf(msgTax, plan.Tax))
		return observability.OutcomeFound
	}
}

// resolveCountry reads names until one is registered, the attempt budget is
// spent, or input ends.
func (s *Service) resolveCountry(ctx context.Context, command, prompt string) (model.Country, error) {
	log := s.logger(ctx)
	var last string
	for attempt := 1; s.maxAttempts == 0 || attempt <= s.maxAttempts; attempt++ {
		line, err := s.in.ReadLine(ctx, prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return model.Country{}, ErrInputClosed
			}
			return model.Country{}, err
		}

		name := console.Normalize(line)
		if res := s.store.Lookup(name); res.Found {
			return res.Country, nil
		}

		last = name
		s.out.Println(invalidCountry(name))
		s.metrics.IncInvalidInput(command)
		log.Debug(ctx, "country not found",
			logging.String("command", command),
			logging.String("input", name),
			logging.Int("attempt", attempt),
		)
	}
	return model.Country{}, fmt.Errorf("%w: %d attempts, last input %q", ErrTooManyAttempts, s.maxAttempts, last)
}

func (s *Service) finish(ctx context.Context, command, outcome string, start time.Time, err error, fields ...logging.Field) {
	log := s.logger(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveQuery(command, outcome, elapsed)

	fields = append(fields,
		logging.String("command", command),
		logging.String("outcome", outcome),
		logging.Any("duration", elapsed),
	)
	if err != nil {
		fields = append(fields, logging.Err(err))
	}
	if outcome == observability.OutcomeError {
		log.Error(ctx, "query failed", fields...)
		return
	}
	log.Info(ctx, "query complete", fields...)
}

// withQueryLogger assigns the query an ID and stores a logger annotated with
// it on the returned context.
func (s *Service) withQueryLogger(ctx context.Context) context.Context {
	ctx, log := logging.WithQueryLogger(ctx, s.log)
	return logging.ContextWithLogger(ctx, log)
}

// logger returns the query-scoped logger from ctx, or the service logger.
func (s *Service) logger(ctx context.Context) logging.Logger {
	if log := logging.LoggerFromContext(ctx); log != nil {
		return log
	}
	return s.log
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrInputClosed), errors.Is(err, ErrTooManyAttempts), errors.Is(err, context.Canceled):
		return observability.OutcomeAborted
	default:
		return observability.OutcomeError
	}
}
