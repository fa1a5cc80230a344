package storage

import "stakeLedger/internal/model"

// EventSink receives committed ledger events in order.
type EventSink interface {
	PutEventBatch(events []model.Event) error
}

// ResultSink receives operations the ledger rejected.
type ResultSink interface {
	PutResultBatch(results []model.OperationResult) error
}
