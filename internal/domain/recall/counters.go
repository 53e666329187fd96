package recall

// Per-task counter names. Retrieval started/ended track the fan-out of
// directory retrieval partitions; recall_error counts pipeline failures.
const (
	CounterRetrievalStarted = "retrieval_started"
	CounterRetrievalEnded   = "retrieval_ended"
	CounterRecallError      = "recall_error"
)
