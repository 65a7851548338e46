// Package undoredo implements the undo/redo engine (C11): a bounded
// double-stack of UndoableActions over an *experiment.Experiment. Grounded
// directly on original_source/ai_track/gui/undo_redo.py's UndoRedo /
// UndoableAction / ReversedAction trio — the teacher has no analogous
// component, so this is a direct idiomatic port rather than a teacher-code
// adaptation.
package undoredo

import "github.com/jvzon-lab/tracklineage/experiment"

// capacity bounds each stack, matching the source's collections.deque(maxlen=50).
const capacity = 50

// UndoableAction is a reversible mutation of an Experiment. Do and Undo
// return a short user-facing message describing what happened.
type UndoableAction interface {
	Do(e *experiment.Experiment) string
	Undo(e *experiment.Experiment) string
}

// reversedAction does exactly the opposite of another action by swapping Do
// and Undo.
type reversedAction struct {
	inverse UndoableAction
}

// Reversed wraps action so that performing it actually undoes action, and
// vice versa. There must be a genuine link between the two directions for
// this to make sense (e.g. reversing a "remove link" action into an "add
// link" action).
func Reversed(action UndoableAction) UndoableAction {
	return reversedAction{inverse: action}
}

func (r reversedAction) Do(e *experiment.Experiment) string   { return r.inverse.Undo(e) }
func (r reversedAction) Undo(e *experiment.Experiment) string { return r.inverse.Do(e) }

// UndoRedo is a bounded undo/redo engine. The zero value is an empty engine
// with no unsaved changes, the same as what New returns.
type UndoRedo struct {
	undo           []UndoableAction
	redo           []UndoableAction
	unsavedChanges int
}

// New returns an empty UndoRedo with no unsaved changes.
func New() *UndoRedo { return &UndoRedo{} }

// HasUnsavedChanges reports whether the unsaved-changes counter is nonzero.
// It can go negative after MarkSaved followed by further undos, in which
// case this still reports true: the live state no longer matches what was
// saved.
func (u *UndoRedo) HasUnsavedChanges() bool { return u.unsavedChanges != 0 }

// MarkSaved zeroes the unsaved-changes counter.
func (u *UndoRedo) MarkSaved() { u.unsavedChanges = 0 }

// Do performs action against e, pushes it onto the undo stack, clears the
// redo stack, and increments the unsaved-changes counter.
func (u *UndoRedo) Do(action UndoableAction, e *experiment.Experiment) string {
	msg := action.Do(e)
	u.undo = push(u.undo, action)
	u.redo = u.redo[:0]
	u.unsavedChanges++
	return msg
}

// Undo pops the most recent action off the undo stack, undoes it, and
// pushes it onto the redo stack. Returns a fallback message if the undo
// stack is empty.
func (u *UndoRedo) Undo(e *experiment.Experiment) string {
	if len(u.undo) == 0 {
		return "No more actions to undo."
	}
	action := u.undo[len(u.undo)-1]
	u.undo = u.undo[:len(u.undo)-1]
	msg := action.Undo(e)
	u.redo = push(u.redo, action)
	u.unsavedChanges--
	return msg
}

// Redo is the symmetric counterpart to Undo.
func (u *UndoRedo) Redo(e *experiment.Experiment) string {
	if len(u.redo) == 0 {
		return "No more actions to redo."
	}
	action := u.redo[len(u.redo)-1]
	u.redo = u.redo[:len(u.redo)-1]
	msg := action.Do(e)
	u.undo = push(u.undo, action)
	u.unsavedChanges++
	return msg
}

// Clear empties both stacks and sets the unsaved-changes counter to a very
// large number, forcing a save prompt on exit: useful after a big action
// that cannot itself be undone (e.g. loading a new file).
func (u *UndoRedo) Clear() {
	u.undo = nil
	u.redo = nil
	u.unsavedChanges = 1_000_000
}

// UndoDepth and RedoDepth report how many actions are currently available
// to undo/redo, for UI display.
func (u *UndoRedo) UndoDepth() int { return len(u.undo) }
func (u *UndoRedo) RedoDepth() int { return len(u.redo) }

// push appends action to stack, evicting the oldest entry if that would
// exceed capacity (matching Python's deque(maxlen=...) behavior).
func push(stack []UndoableAction, action UndoableAction) []UndoableAction {
	stack = append(stack, action)
	if len(stack) > capacity {
		stack = stack[1:]
	}
	return stack
}
