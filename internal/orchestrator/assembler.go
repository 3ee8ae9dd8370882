// ABOUTME: Assembles complete tool calls from streamed fragments
// ABOUTME: Tracks the open call by index and accumulates name/argument pieces

package orchestrator

// Assembler reconstructs complete tool calls from the fragments a model
// stream delivers. A fragment whose index differs from the currently open
// call closes it; a fragment for an index seen earlier reopens that call
// and keeps appending to it. One finished call comes out per distinct index,
// in first-appearance order.
type Assembler struct {
	open      bool
	openIndex int
	byIndex   map[int]*ToolCall
	order     []int
}

// NewAssembler returns an empty assembler in the idle state.
func NewAssembler() *Assembler {
	return &Assembler{byIndex: make(map[int]*ToolCall)}
}

// Feed applies one streamed fragment.
func (a *Assembler) Feed(d ToolCallDelta) {
	if a.open && d.Index != a.openIndex {
		a.open = false
	}

	call, ok := a.byIndex[d.Index]
	if !ok {
		call = &ToolCall{Index: d.Index}
		a.byIndex[d.Index] = call
		a.order = append(a.order, d.Index)
	}
	a.open = true
	a.openIndex = d.Index

	if call.ID == "" {
		call.ID = d.ID
	}
	call.Name += d.Name
	call.Arguments += d.Arguments
}

// Finish closes any open call and returns the assembled calls in the order
// their indices first appeared. The assembler can be reused afterwards only
// by creating a new one.
func (a *Assembler) Finish() []ToolCall {
	a.open = false
	calls := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		calls = append(calls, *a.byIndex[idx])
	}
	return calls
}
