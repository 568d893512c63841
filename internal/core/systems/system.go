package systems

import (
	"time"
)

// System is a unit of per-tick work driven by the Manager.
type System interface {
	Name() string
	Priority() Priority
	// Update runs once per host tick. tick counts from 1.
	Update(tick uint64) error
}

// Priority defines execution order. Higher runs first.
type Priority uint16

const (
	PriorityLowest  Priority = 200
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 600
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

// Func adapts a function to System.
type Func struct {
	SystemName     string
	SystemPriority Priority
	Fn             func(tick uint64) error
}

func (f Func) Name() string             { return f.SystemName }
func (f Func) Priority() Priority       { return f.SystemPriority }
func (f Func) Update(tick uint64) error { return f.Fn(tick) }
