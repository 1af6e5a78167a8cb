// Package service implements the relationship coordinators: invite
// generation, redemption, revocation, removal, and the read-side query
// helper. Coordinators are the only writers of the relationship arrays.
package service

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/leasehold/internal/platform/id"
	"github.com/louisbranch/leasehold/internal/tenancy/domain"
	"github.com/louisbranch/leasehold/internal/tenancy/event"
	"github.com/louisbranch/leasehold/internal/tenancy/invitelink"
	"github.com/louisbranch/leasehold/internal/tenancy/storage"
)

const (
	// redeemAttempts bounds the contention retry loop per redemption call.
	redeemAttempts = 5
	// removeAttempts bounds the contention retry loop per removal call.
	removeAttempts = 5
	// codeAttempts bounds short-code collision retries before widening.
	codeAttempts = 5
	// backoffInitialInterval seeds the exponential backoff between retries.
	backoffInitialInterval = 10 * time.Millisecond
)

// Service coordinates relationship mutations against the transactional
// store. All mutations to the denormalized views flow through it.
type Service struct {
	store         storage.Store
	dispatcher    event.Dispatcher
	selector      domain.UnitSelector
	clock         func() time.Time
	idGenerator   func() (string, error)
	codeGenerator func(length int) (string, error)
	tracer        trace.Tracer
	verifier      *invitelink.VerifierConfig
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides long-id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.idGenerator = gen
		}
	}
}

// WithCodeGenerator overrides short-code generation.
func WithCodeGenerator(gen func(length int) (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.codeGenerator = gen
		}
	}
}

// WithUnitSelector overrides the unit selection strategy for invites that do
// not pin a unit.
func WithUnitSelector(selector domain.UnitSelector) Option {
	return func(s *Service) {
		if selector != nil {
			s.selector = selector
		}
	}
}

// WithGrantVerifier enables grant-gated redemption with the given verifier.
func WithGrantVerifier(cfg invitelink.VerifierConfig) Option {
	return func(s *Service) {
		s.verifier = &cfg
	}
}

// WithDispatcher sets the change-event consumer.
func WithDispatcher(dispatcher event.Dispatcher) Option {
	return func(s *Service) {
		if dispatcher != nil {
			s.dispatcher = dispatcher
		}
	}
}

// New creates a Service with default dependencies.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		dispatcher:    event.NopDispatcher{},
		selector:      domain.FirstAvailable,
		clock:         time.Now,
		idGenerator:   id.NewID,
		codeGenerator: domain.NewShortCode,
		tracer:        otel.Tracer("github.com/louisbranch/leasehold/internal/tenancy/service"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}
