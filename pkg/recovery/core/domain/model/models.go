package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	logger "github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"github.com/google/uuid"
)

// ExecutionStatus represents the state of a recovery execution.
type ExecutionStatus string

const (
	ExecutionStatusCreated   ExecutionStatus = "CREATED"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusPaused    ExecutionStatus = "PAUSED"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// String returns the string representation of the ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsFinished checks if the ExecutionStatus represents a terminal state.
func (s ExecutionStatus) IsFinished() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// WaveStatus represents the state of a single wave within an execution.
type WaveStatus string

const (
	WaveStatusPending          WaveStatus = "PENDING"
	WaveStatusInProgress       WaveStatus = "IN_PROGRESS"
	WaveStatusAwaitingApproval WaveStatus = "AWAITING_APPROVAL"
	WaveStatusCompleted        WaveStatus = "COMPLETED"
	WaveStatusFailed           WaveStatus = "FAILED"
	WaveStatusCancelled        WaveStatus = "CANCELLED"
)

// String returns the string representation of the WaveStatus.
func (s WaveStatus) String() string {
	return string(s)
}

// IsFinished checks if the WaveStatus represents a terminal state.
func (s WaveStatus) IsFinished() bool {
	switch s {
	case WaveStatusCompleted, WaveStatusFailed, WaveStatusCancelled:
		return true
	default:
		return false
	}
}

// LaunchState represents the per-server launch state reported by the remote job service.
type LaunchState string

const (
	LaunchStatePending    LaunchState = "PENDING"
	LaunchStateLaunched   LaunchState = "LAUNCHED"
	LaunchStateFailed     LaunchState = "FAILED"
	LaunchStateTerminated LaunchState = "TERMINATED"
)

// String returns the string representation of the LaunchState.
func (s LaunchState) String() string {
	return string(s)
}

// IsTerminal checks if the LaunchState represents a terminal per-server state.
func (s LaunchState) IsTerminal() bool {
	switch s {
	case LaunchStateLaunched, LaunchStateFailed, LaunchStateTerminated:
		return true
	default:
		return false
	}
}

// RemoteJobStatus represents the overall state of the external recovery job.
type RemoteJobStatus string

const (
	RemoteJobStatusPending    RemoteJobStatus = "PENDING"
	RemoteJobStatusInProgress RemoteJobStatus = "IN_PROGRESS"
	RemoteJobStatusCompleted  RemoteJobStatus = "COMPLETED"
	RemoteJobStatusFailed     RemoteJobStatus = "FAILED"
)

// String returns the string representation of the RemoteJobStatus.
func (s RemoteJobStatus) String() string {
	return string(s)
}

// IsFinished checks if the RemoteJobStatus represents a terminal state.
func (s RemoteJobStatus) IsFinished() bool {
	return s == RemoteJobStatusCompleted || s == RemoteJobStatusFailed
}

// MatchMethod indicates how an instance match was established.
type MatchMethod string

const (
	MatchMethodExact MatchMethod = "EXACT"
	MatchMethodFuzzy MatchMethod = "FUZZY"
)

// FailureList holds a list of error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte: // Handle byte slice from database
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}

	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil // Return empty list if the byte slice is empty
	}

	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// ServerIDList holds the ordered set of server IDs assigned to a wave.
type ServerIDList []string

// Value implements the `driver.Valuer` interface, converting ServerIDList to a JSON string.
func (sl ServerIDList) Value() (driver.Value, error) {
	if sl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(sl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to ServerIDList.
func (sl *ServerIDList) Scan(value interface{}) error {
	if value == nil {
		*sl = make(ServerIDList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte: // Handle byte slice from database
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ServerIDList: %T", value)
	}

	if len(b) == 0 {
		*sl = make(ServerIDList, 0)
		return nil
	}

	if err := json.Unmarshal(b, sl); err != nil {
		return fmt.Errorf("failed to unmarshal ServerIDList JSON: %w", err)
	}
	return nil
}

// Contains reports whether the list contains the given server ID.
func (sl ServerIDList) Contains(serverID string) bool {
	for _, id := range sl {
		if id == serverID {
			return true
		}
	}
	return false
}

// ServerLaunchStatus is the per-server snapshot inside a wave. It is derived each poll
// from the remote job service and merged by the job monitor; it is not separately
// persisted as its own record.
type ServerLaunchStatus struct {
	ServerID         string      `json:"serverId"`
	LaunchState      LaunchState `json:"launchState"`
	TargetResourceID string      `json:"targetResourceId,omitempty"`
}

// ServerStatusList holds the per-server snapshots of a wave.
type ServerStatusList []ServerLaunchStatus

// Value implements the `driver.Valuer` interface, converting ServerStatusList to a JSON string.
func (sl ServerStatusList) Value() (driver.Value, error) {
	if sl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(sl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to ServerStatusList.
func (sl *ServerStatusList) Scan(value interface{}) error {
	if value == nil {
		*sl = make(ServerStatusList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte: // Handle byte slice from database
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for ServerStatusList: %T", value)
	}

	if len(b) == 0 {
		*sl = make(ServerStatusList, 0)
		return nil
	}

	if err := json.Unmarshal(b, sl); err != nil {
		return fmt.Errorf("failed to unmarshal ServerStatusList JSON: %w", err)
	}
	return nil
}

// WaveProgress holds the derived progress figures of a wave poll.
type WaveProgress struct {
	// PercentComplete is 100 * (launched+failed) / total, 0 when total is 0.
	PercentComplete float64
	// SuccessRate is 100 * launched / (launched+failed), 0 when no server is terminal yet.
	SuccessRate float64
}

// WaveStatusSnapshot is the pure, read-only result of one job monitor poll. It carries
// everything the orchestrator needs to decide the next transition for the wave.
type WaveStatusSnapshot struct {
	JobStatus     RemoteJobStatus
	PerServer     ServerStatusList
	LaunchedCount int
	FailedCount   int
	TotalCount    int
	Progress      WaveProgress
	WaveComplete  bool
}

// WaveExecution is a structure representing one ordered phase of a recovery execution.
type WaveExecution struct {
	ID               string
	ExecutionID      string
	WaveNumber       int
	ServerIDs        ServerIDList
	JobID            string
	Status           WaveStatus
	LaunchedCount    int
	FailedCount      int
	TotalCount       int
	ServerStatuses   ServerStatusList
	RequiresApproval bool
	TimeoutSeconds   int
	FailureReason    string
	StartedAt        *time.Time
	EndedAt          *time.Time
	LastUpdated      time.Time
}

// RecoveryExecution is a structure representing one failover/failback run of a plan.
// It is mutated only through the state persister; Version is the optimistic-concurrency
// counter every conditional write is predicated on.
type RecoveryExecution struct {
	ID                    string
	PlanID                string
	IsDrill               bool
	Status                ExecutionStatus
	CurrentWaveIndex      int
	Version               int
	CancellationRequested bool
	ActiveTokenID         string
	Waves                 []*WaveExecution
	Failures              FailureList
	CreateTime            time.Time
	StartTime             *time.Time
	EndTime               *time.Time
	LastUpdated           time.Time
}

// CallbackToken is a single-use capability bound to one paused wave. Token is the
// opaque, unguessable value handed to the external approver.
type CallbackToken struct {
	Token       string
	ExecutionID string
	WaveNumber  int
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Consumed    bool
	ConsumedAt  *time.Time
}

// IsExpired reports whether the token's bounded lifetime has elapsed at the given instant.
func (t *CallbackToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// InstanceMatch is the result of pairing one source resource to one candidate target.
// Produced fresh per matching run and not mutated afterward.
type InstanceMatch struct {
	SourceID    string
	TargetID    string
	Confidence  float64
	MatchMethod MatchMethod
	Validated   bool
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// NewTokenValue generates a new opaque token value.
func NewTokenValue() string {
	return uuid.New().String()
}

// NewRecoveryExecution creates a new CREATED execution for the given plan.
func NewRecoveryExecution(planID string, isDrill bool) *RecoveryExecution {
	now := time.Now()
	return &RecoveryExecution{
		ID:               NewID(),
		PlanID:           planID,
		IsDrill:          isDrill,
		Status:           ExecutionStatusCreated,
		CurrentWaveIndex: 0,
		Version:          0,
		Waves:            make([]*WaveExecution, 0),
		Failures:         make(FailureList, 0),
		CreateTime:       now,
		LastUpdated:      now,
	}
}

// NewWaveExecution creates a new PENDING wave belonging to the given execution.
func NewWaveExecution(executionID string, waveNumber int, serverIDs []string) *WaveExecution {
	ids := make(ServerIDList, len(serverIDs))
	copy(ids, serverIDs)
	return &WaveExecution{
		ID:             NewID(),
		ExecutionID:    executionID,
		WaveNumber:     waveNumber,
		ServerIDs:      ids,
		Status:         WaveStatusPending,
		TotalCount:     len(ids),
		ServerStatuses: make(ServerStatusList, 0),
		LastUpdated:    time.Now(),
	}
}

// NewCallbackToken creates a token bound to one wave of an execution, with the given lifetime.
func NewCallbackToken(executionID string, waveNumber int, ttl time.Duration) *CallbackToken {
	now := time.Now()
	return &CallbackToken{
		Token:       NewTokenValue(),
		ExecutionID: executionID,
		WaveNumber:  waveNumber,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		Consumed:    false,
	}
}

// CurrentWave returns the wave at CurrentWaveIndex, or nil when the index is out of range.
func (re *RecoveryExecution) CurrentWave() *WaveExecution {
	if re.CurrentWaveIndex < 0 || re.CurrentWaveIndex >= len(re.Waves) {
		return nil
	}
	return re.Waves[re.CurrentWaveIndex]
}

// HasMoreWaves reports whether a wave remains after the current one.
func (re *RecoveryExecution) HasMoreWaves() bool {
	return re.CurrentWaveIndex+1 < len(re.Waves)
}

// isValidExecutionTransition checks if the state transition for RecoveryExecution is valid.
func isValidExecutionTransition(current, next ExecutionStatus) bool {
	switch current {
	case ExecutionStatusCreated:
		// CREATED can start running or be cancelled before the first wave starts
		return next == ExecutionStatusRunning || next == ExecutionStatusCancelled || next == ExecutionStatusFailed
	case ExecutionStatusRunning:
		return next == ExecutionStatusPaused || next == ExecutionStatusCompleted || next == ExecutionStatusFailed || next == ExecutionStatusCancelled
	case ExecutionStatusPaused:
		// PAUSED resumes via a callback token, or ends through cancel or token expiry
		return next == ExecutionStatusRunning || next == ExecutionStatusCancelled || next == ExecutionStatusFailed
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return false // Cannot transition directly from terminal states
	default:
		return false
	}
}

// TransitionTo safely transitions the state of RecoveryExecution. Note: Fields other than
// Status and LastUpdated must be set separately by the caller.
func (re *RecoveryExecution) TransitionTo(newStatus ExecutionStatus) error {
	if !isValidExecutionTransition(re.Status, newStatus) {
		return fmt.Errorf("RecoveryExecution (ID: %s): Invalid state transition: %s -> %s", re.ID, re.Status, newStatus)
	}
	re.Status = newStatus
	re.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted updates the RecoveryExecution status to RUNNING.
func (re *RecoveryExecution) MarkAsStarted() {
	if err := re.TransitionTo(ExecutionStatusRunning); err != nil {
		logger.Warnf("Could not update RecoveryExecution (ID: %s) status to RUNNING: %v", re.ID, err)
		re.Status = ExecutionStatusRunning
	}
	now := time.Now()
	if re.StartTime == nil {
		re.StartTime = &now
	}
	re.LastUpdated = now
}

// MarkAsPaused updates the RecoveryExecution status to PAUSED and records the active token.
func (re *RecoveryExecution) MarkAsPaused(tokenID string) {
	if err := re.TransitionTo(ExecutionStatusPaused); err != nil {
		logger.Warnf("Could not update RecoveryExecution (ID: %s) status to PAUSED: %v", re.ID, err)
		re.Status = ExecutionStatusPaused
	}
	re.ActiveTokenID = tokenID
	re.LastUpdated = time.Now()
}

// MarkAsResumed updates the RecoveryExecution status back to RUNNING and clears the active token.
func (re *RecoveryExecution) MarkAsResumed() {
	if err := re.TransitionTo(ExecutionStatusRunning); err != nil {
		logger.Warnf("Could not update RecoveryExecution (ID: %s) status to RUNNING: %v", re.ID, err)
		re.Status = ExecutionStatusRunning
	}
	re.ActiveTokenID = ""
	re.LastUpdated = time.Now()
}

// MarkAsCompleted updates the RecoveryExecution status to COMPLETED.
func (re *RecoveryExecution) MarkAsCompleted() {
	if err := re.TransitionTo(ExecutionStatusCompleted); err != nil {
		logger.Warnf("Could not update RecoveryExecution (ID: %s) status to COMPLETED: %v", re.ID, err)
		re.Status = ExecutionStatusCompleted
	}
	now := time.Now()
	re.EndTime = &now
	re.LastUpdated = now
}

// MarkAsFailed updates the RecoveryExecution status to FAILED and adds error information.
func (re *RecoveryExecution) MarkAsFailed(err error) {
	if terr := re.TransitionTo(ExecutionStatusFailed); terr != nil {
		logger.Warnf("Could not update RecoveryExecution (ID: %s) status to FAILED: %v", re.ID, terr)
		re.Status = ExecutionStatusFailed
	}
	now := time.Now()
	re.EndTime = &now
	re.LastUpdated = now
	if err != nil {
		re.AddFailureException(err)
	}
}

// MarkAsCancelled updates the RecoveryExecution status to CANCELLED.
func (re *RecoveryExecution) MarkAsCancelled(reason string) {
	if err := re.TransitionTo(ExecutionStatusCancelled); err != nil {
		logger.Warnf("Could not update RecoveryExecution (ID: %s) status to CANCELLED: %v", re.ID, err)
		re.Status = ExecutionStatusCancelled
	}
	now := time.Now()
	re.EndTime = &now
	re.LastUpdated = now
	if reason != "" {
		re.AddFailureException(fmt.Errorf("cancelled: %s", reason))
	}
}

// AddFailureException adds error information to RecoveryExecution. It avoids adding duplicate errors.
func (re *RecoveryExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)

	for _, existingErr := range re.Failures {
		if existingErr == errMsg { // Check for duplicate error messages
			logger.Debugf("Skipped adding duplicate error '%s' to RecoveryExecution (ID: %s).", errMsg, re.ID)
			return
		}
	}

	re.Failures = append(re.Failures, errMsg)
	re.LastUpdated = time.Now()
}

// AddWaveExecution adds a WaveExecution to RecoveryExecution.
func (re *RecoveryExecution) AddWaveExecution(we *WaveExecution) {
	re.Waves = append(re.Waves, we)
}

// isValidWaveTransition checks if the state transition for WaveExecution is valid.
func isValidWaveTransition(current, next WaveStatus) bool {
	switch current {
	case WaveStatusPending:
		return next == WaveStatusInProgress || next == WaveStatusCancelled
	case WaveStatusInProgress:
		return next == WaveStatusAwaitingApproval || next == WaveStatusCompleted || next == WaveStatusFailed || next == WaveStatusCancelled
	case WaveStatusAwaitingApproval:
		// Approval resolves to completion, cancellation, or failure on token expiry
		return next == WaveStatusCompleted || next == WaveStatusCancelled || next == WaveStatusFailed
	case WaveStatusCompleted, WaveStatusFailed, WaveStatusCancelled:
		return false // Cannot transition directly from terminal states
	default:
		return false
	}
}

// TransitionTo safely transitions the state of WaveExecution.
func (we *WaveExecution) TransitionTo(newStatus WaveStatus) error {
	if !isValidWaveTransition(we.Status, newStatus) {
		return fmt.Errorf("WaveExecution (ID: %s, wave %d): Invalid state transition: %s -> %s", we.ID, we.WaveNumber, we.Status, newStatus)
	}
	we.Status = newStatus
	we.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted updates the WaveExecution status to IN_PROGRESS and records the job ID.
func (we *WaveExecution) MarkAsStarted(jobID string) {
	if err := we.TransitionTo(WaveStatusInProgress); err != nil {
		logger.Warnf("Could not update WaveExecution (ID: %s) status to IN_PROGRESS: %v", we.ID, err)
		we.Status = WaveStatusInProgress
	}
	now := time.Now()
	if we.StartedAt == nil {
		we.StartedAt = &now
	}
	if we.JobID == "" {
		we.JobID = jobID
	}
	we.LastUpdated = now
}

// MarkAsAwaitingApproval updates the WaveExecution status to AWAITING_APPROVAL.
func (we *WaveExecution) MarkAsAwaitingApproval() {
	if err := we.TransitionTo(WaveStatusAwaitingApproval); err != nil {
		logger.Warnf("Could not update WaveExecution (ID: %s) status to AWAITING_APPROVAL: %v", we.ID, err)
		we.Status = WaveStatusAwaitingApproval
	}
	we.LastUpdated = time.Now()
}

// MarkAsCompleted updates the WaveExecution status to COMPLETED.
func (we *WaveExecution) MarkAsCompleted() {
	if err := we.TransitionTo(WaveStatusCompleted); err != nil {
		logger.Warnf("Could not update WaveExecution (ID: %s) status to COMPLETED: %v", we.ID, err)
		we.Status = WaveStatusCompleted
	}
	now := time.Now()
	we.EndedAt = &now
	we.LastUpdated = now
}

// MarkAsFailed updates the WaveExecution status to FAILED and records the reason.
func (we *WaveExecution) MarkAsFailed(reason string) {
	if err := we.TransitionTo(WaveStatusFailed); err != nil {
		logger.Warnf("Could not update WaveExecution (ID: %s) status to FAILED: %v", we.ID, err)
		we.Status = WaveStatusFailed
	}
	we.FailureReason = reason
	now := time.Now()
	we.EndedAt = &now
	we.LastUpdated = now
}

// MarkAsCancelled updates the WaveExecution status to CANCELLED.
func (we *WaveExecution) MarkAsCancelled() {
	if err := we.TransitionTo(WaveStatusCancelled); err != nil {
		logger.Warnf("Could not update WaveExecution (ID: %s) status to CANCELLED: %v", we.ID, err)
		we.Status = WaveStatusCancelled
	}
	now := time.Now()
	we.EndedAt = &now
	we.LastUpdated = now
}

// ApplySnapshot merges a monitor snapshot into the wave counters. It rejects snapshots
// that would violate launched+failed <= total.
func (we *WaveExecution) ApplySnapshot(snapshot WaveStatusSnapshot) error {
	if snapshot.LaunchedCount+snapshot.FailedCount > we.TotalCount {
		return exception.NewValidationError("model",
			"WaveExecution (ID: %s): snapshot counts %d+%d exceed total %d",
			we.ID, snapshot.LaunchedCount, snapshot.FailedCount, we.TotalCount)
	}
	we.LaunchedCount = snapshot.LaunchedCount
	we.FailedCount = snapshot.FailedCount
	we.ServerStatuses = snapshot.PerServer
	we.LastUpdated = time.Now()
	return nil
}

// DebugString returns a debug string representation of WaveExecution.
func (we *WaveExecution) DebugString() string {
	endedStr := "nil"
	if we.EndedAt != nil {
		endedStr = we.EndedAt.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf(
		"&{ID:%s ExecutionID:%s WaveNumber:%d Status:%s JobID:%s Launched:%d Failed:%d Total:%d RequiresApproval:%t EndedAt:%s}",
		we.ID, we.ExecutionID, we.WaveNumber, we.Status, we.JobID,
		we.LaunchedCount, we.FailedCount, we.TotalCount, we.RequiresApproval, endedStr,
	)
}
