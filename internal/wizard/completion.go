package wizard

import "strings"

// CompletionPolicy decides whether a step shows as complete. passed tells
// whether the step has ever passed validation through Next or Submit;
// validate re-runs the step's validator on the current data.
type CompletionPolicy interface {
	Complete(passed bool, validate func() FieldErrors) bool
	Name() string
}

// StickyCompletion marks a step complete once it has ever passed. Later
// edits that break the step do not remove the marker.
type StickyCompletion struct{}

func (StickyCompletion) Complete(passed bool, _ func() FieldErrors) bool { return passed }
func (StickyCompletion) Name() string                                    { return "sticky" }

// RevalidateCompletion marks a step complete only while it has passed and
// still validates against the current data.
type RevalidateCompletion struct{}

func (RevalidateCompletion) Complete(passed bool, validate func() FieldErrors) bool {
	return passed && len(validate()) == 0
}
func (RevalidateCompletion) Name() string { return "revalidate" }

// PolicyByName resolves "sticky" or "revalidate"; anything else yields
// StickyCompletion and false.
func PolicyByName(name string) (CompletionPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sticky":
		return StickyCompletion{}, true
	case "revalidate":
		return RevalidateCompletion{}, true
	default:
		return StickyCompletion{}, false
	}
}
