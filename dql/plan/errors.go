package plan

import "errors"

// Sentinel errors for the plan layer. Callers distinguish structural bugs
// (ErrRewireFailed, ErrRootRemoval - these should never fire in correct
// optimizer code) from input problems (ErrUnknownCollection,
// ErrMalformedPlan) with errors.Is.
var (
	// ErrUnknownNode is returned when a node id is not registered with the
	// plan.
	ErrUnknownNode = errors.New("unknown execution node")

	// ErrDuplicateID is returned when registering a node whose id is already
	// taken.
	ErrDuplicateID = errors.New("duplicate execution node id")

	// ErrRootRemoval is returned when an edit would remove the plan root.
	ErrRootRemoval = errors.New("cannot remove root node of plan")

	// ErrRewireFailed is returned when an edit finds the dependency/parent
	// bookkeeping inconsistent with what the edit assumed.
	ErrRewireFailed = errors.New("could not rewire node dependencies")

	// ErrUnsupportedConstruct is returned when lowering meets a statement or
	// operand shape it has no handler for.
	ErrUnsupportedConstruct = errors.New("unsupported query construct")

	// ErrUnknownCollection is returned when a statement names a collection
	// that is not registered with the query.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrMalformedPlan is returned when a persisted plan cannot be decoded.
	ErrMalformedPlan = errors.New("malformed persisted plan")
)
