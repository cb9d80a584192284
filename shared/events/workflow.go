/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package events

// Workflow event type constants.
const (
	ProgressUpdatedType  = "workflow.progress"
	WorkflowFinishedType = "workflow.finished"
)

// ProgressUpdated is published whenever a step changes state. Payload is the
// ordered step snapshot broadcast to observers.
type ProgressUpdated struct {
	BaseEvent
	// RunID identifies the workflow run
	RunID string
	// Step is the step that changed
	Step string
	// State is the new state of Step
	State string
	// Payload is the JSON snapshot of all steps
	Payload []byte
}

// Type returns the event type identifier.
func (e ProgressUpdated) Type() string {
	return ProgressUpdatedType
}

// NewProgressUpdated creates a ProgressUpdated event.
func NewProgressUpdated(runID, step, state string, payload []byte) ProgressUpdated {
	return ProgressUpdated{
		BaseEvent: NewBaseEvent(ProgressUpdatedType),
		RunID:     runID,
		Step:      step,
		State:     state,
		Payload:   payload,
	}
}

// WorkflowFinished is published once per run.
type WorkflowFinished struct {
	BaseEvent
	// RunID identifies the workflow run
	RunID string
	// Succeeded is true when every step finished
	Succeeded bool
	// FailedStep is the step marked failed, if any
	FailedStep string
	// Reason is the failure trace
	Reason string
}

// Type returns the event type identifier.
func (e WorkflowFinished) Type() string {
	return WorkflowFinishedType
}

// NewWorkflowFinished creates a WorkflowFinished event.
func NewWorkflowFinished(runID string, failedStep, reason string) WorkflowFinished {
	return WorkflowFinished{
		BaseEvent:  NewBaseEvent(WorkflowFinishedType),
		RunID:      runID,
		Succeeded:  failedStep == "" && reason == "",
		FailedStep: failedStep,
		Reason:     reason,
	}
}
