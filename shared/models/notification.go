package models

// RunStatus - итоговый статус запуска пайплайна.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// RunNotification публикуется в очередь результатов после каждого запуска.
type RunNotification struct {
	RunID         string           `json:"run_id"`
	ProcedureName string           `json:"procedure_name"`
	Mode          Mode             `json:"mode"`
	Status        RunStatus        `json:"status"`
	FailedStage   string           `json:"failed_stage,omitempty"`
	ErrorDetails  string           `json:"error_details,omitempty"`
	Outcome       *DeliveryOutcome `json:"outcome,omitempty"`
	StartedAt     string           `json:"started_at"`
	FinishedAt    string           `json:"finished_at"`
}
