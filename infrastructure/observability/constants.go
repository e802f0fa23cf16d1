package observability

// Metric name prefixes
const (
	MetricPrefix = "fitpledge"
)

// Metric names
const (
	// Ledger metrics
	LedgerMutationsTotal = MetricPrefix + ".ledger.mutations_total"
	LedgerMutationAmount = MetricPrefix + ".ledger.mutation_amount"

	// Settlement metrics
	CommitmentsSettledTotal = MetricPrefix + ".commitments.settled_total"
	ContestsActive          = MetricPrefix + ".contests.active"
	ContestTransitionsTotal = MetricPrefix + ".contests.transitions_total"

	// Retry metrics
	TransientRetriesTotal = MetricPrefix + ".store.transient_retries_total"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"

	// Database labels
	LabelRepository = "repository"
	LabelMethod     = "method"
)

// Settlement outcomes
const (
	OutcomeFullReturn = "full_return"
	OutcomePartial    = "partial"
	OutcomeForfeit    = "forfeit"
)
