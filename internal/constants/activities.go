package constants

// Activity names used for workflow registration and execution.
const (
	// Generation fan-out
	GenerateCandidateActivity = "GenerateCandidate"

	// Selection
	SelectCandidateActivity = "SelectCandidate"

	// Delivery pipeline
	WriteSubjectActivity        = "WriteSubject"
	ConvertFormatActivity       = "ConvertFormat"
	CheckDeliveryPolicyActivity = "CheckDeliveryPolicy"
	SendEmailActivity           = "SendEmail"

	// Persistence
	ArchiveRunActivity = "ArchiveRun"
)

// Workflow names as registered on the worker.
const (
	OutreachWorkflowName = "OutreachWorkflow"
	DeliveryWorkflowName = "DeliveryWorkflow"
)

// Query names exposed by running workflows.
const (
	QueryRunState      = "run_state_v1"
	QueryDeliveryState = "delivery_state_v1"
)
