package pipeline

// State names a transaction's furthest point of progress through the
// pipeline. A transaction that does not complete Submit either reaches
// Dispatched or is recorded as Dropped with the stage and reason it was
// dropped at.
type State string

const (
	StateIngested   State = "ingested"
	StateParsed     State = "parsed"
	StateFiltered   State = "filtered"
	StateSimulated  State = "simulated"
	StateSized      State = "sized"
	StateViable     State = "viable"
	StateBuilt      State = "built"
	StateDispatched State = "dispatched"
	StateDropped    State = "dropped"
)

// Result reports where one transaction ended up after a pipeline pass.
type Result struct {
	State      State
	DropStage  string
	DropReason string
	Err        error
}

func dropped(stage string, err error) Result {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Result{State: StateDropped, DropStage: stage, DropReason: reason, Err: err}
}
