package prompts

import "fmt"

type Urgency int

const (
	UrgencyNone Urgency = iota
	// a quarter or less of the budget left
	UrgencyConverge
	// two steps left
	UrgencyWrapUp
	// the next step is the last one
	UrgencyFinal
)

// UrgencyAt is the urgency after `step` of `maxSteps` controller turns have completed.
// It never decreases as step grows.
func UrgencyAt(step, maxSteps int) Urgency {
	remaining := maxSteps - step
	switch {
	case remaining <= 1:
		return UrgencyFinal
	case remaining == 2:
		return UrgencyWrapUp
	case remaining*4 <= maxSteps:
		return UrgencyConverge
	}
	return UrgencyNone
}

// Nudge is the status turn appended after the feedback of step `step`.
func Nudge(step, maxSteps int, features Features) string {
	next := step + 1
	remaining := max(0, maxSteps-step)
	status := fmt.Sprintf("Step %d/%d.", next, maxSteps)

	switch UrgencyAt(step, maxSteps) {

	case UrgencyFinal:
		if features.SynthesisCoT {
			return status + " This is your LAST step. List the evidence you collected, write 2-3 sentences of reasoning, and call FINAL(answer) in this response. No further steps will run."
		}
		return status + " This is your LAST step. Call FINAL(answer) in this response with your best answer. No further steps will run."

	case UrgencyWrapUp:
		if features.SynthesisCoT {
			return status + " You are almost out of steps. Before calling FINAL(answer), list all evidence collected, note whether each piece supports or contradicts the answer, write 2-3 sentences of reasoning, then call FINAL(answer)."
		}
		return status + " You are almost out of steps. Aggregate what you have and call FINAL(answer) now."

	case UrgencyConverge:
		return status + fmt.Sprintf(" Only %d steps remain. Stop exploring, converge on an answer and call FINAL(answer) as soon as the evidence is sufficient.", remaining)

	}

	if features.ExplicitConvergence {
		return status + " Update your `scratchpad` variable with what you've learned and what's still missing. If no information gap remains, call FINAL(answer). Otherwise, continue with targeted delegate calls."
	}
	return status + " Continue your analysis."
}
