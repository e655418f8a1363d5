package store

import "time"

// ConversionRecord is one journaled orchestrator run.
type ConversionRecord struct {
	Token           string
	Source          string
	Entity          string
	Target          string
	Resolved        bool
	AllItemsHandled bool
	Submitted       bool
	FailureCode     string
	ItemCount       int
	HandledCount    int
	CreatedAt       time.Time
	Items           []ItemRecord
}

// ItemRecord is the terminal disposition of one dependent item within
// a conversion. Position is the item's index in the run's input order.
type ItemRecord struct {
	Position       int
	Classification string
	Outcome        string
	FinalState     string
}
