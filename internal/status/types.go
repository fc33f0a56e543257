// Package status defines the vocabulary shared by the sync engine's persisted records.
package status

// TablePhase represents the sync state of one synchronized table
type TablePhase string

const (
	// TablePhasePending means the table has metadata but has never been attempted
	TablePhasePending TablePhase = "pending"

	// TablePhaseInProgress means a sync attempt started and has not reached a terminal state.
	// A table left in this phase by a crash or cancellation is redone on the next run.
	TablePhaseInProgress TablePhase = "in_progress"

	// TablePhaseSuccess means the last attempt completed and its cursor was committed
	TablePhaseSuccess TablePhase = "success"

	// TablePhaseFailed means the last attempt failed
	TablePhaseFailed TablePhase = "failed"
)

// IsTerminal reports whether the phase ends an attempt
func (p TablePhase) IsTerminal() bool {
	return p == TablePhaseSuccess || p == TablePhaseFailed
}

// LogStatus is the outcome recorded on a sync log entry
type LogStatus string

const (
	// LogStatusInProgress marks an entry that has not completed yet
	LogStatusInProgress LogStatus = "in_progress"
	// LogStatusSuccess marks a completed operation
	LogStatusSuccess LogStatus = "success"
	// LogStatusFailed marks a failed operation
	LogStatusFailed LogStatus = "failed"
	// LogStatusConflict marks a record that diverged and was not applied
	LogStatusConflict LogStatus = "conflict"
	// LogStatusSkipped marks a record left out of a pass, e.g. while it has an unresolved conflict
	LogStatusSkipped LogStatus = "skipped"
)

// SyncType is the kind of engine operation
type SyncType string

const (
	// SyncTypeFull is a pull followed by a push
	SyncTypeFull SyncType = "full"
	// SyncTypePull downloads remote changes
	SyncTypePull SyncType = "pull"
	// SyncTypePush uploads local changes
	SyncTypePush SyncType = "push"
)

// Operation is a record-level mutation
type Operation string

const (
	// OperationInsert creates a record
	OperationInsert Operation = "insert"
	// OperationUpdate modifies a record
	OperationUpdate Operation = "update"
	// OperationDelete removes a record
	OperationDelete Operation = "delete"
)

// Valid reports whether the operation is one of the known mutations
func (o Operation) Valid() bool {
	switch o {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

// Resolution names the winning side of a conflict
type Resolution string

const (
	// ResolutionLocal keeps the local version
	ResolutionLocal Resolution = "local"
	// ResolutionRemote keeps the remote version
	ResolutionRemote Resolution = "remote"
)

// Valid reports whether the resolution is local or remote
func (r Resolution) Valid() bool {
	return r == ResolutionLocal || r == ResolutionRemote
}

// Policy is the conflict resolution policy applied when both sides changed a record
type Policy string

const (
	// PolicyManual records the conflict as unresolved and applies neither side
	PolicyManual Policy = "manual"
	// PolicyLocalWins keeps the local version and records the conflict as resolved
	PolicyLocalWins Policy = "local-wins"
	// PolicyRemoteWins applies the remote version and records the conflict as resolved
	PolicyRemoteWins Policy = "remote-wins"
)

// Valid reports whether the policy is known
func (p Policy) Valid() bool {
	switch p {
	case PolicyManual, PolicyLocalWins, PolicyRemoteWins:
		return true
	default:
		return false
	}
}
