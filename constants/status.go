package constants

// Outcome is the canonical result for rows in title_runs.
type Outcome string

// Stable values (store these exact strings in DB).
const (
	OutcomeTitled       Outcome = "TITLED"        // title written, no tag configured
	OutcomeTagged       Outcome = "TAGGED"        // title written and processed tag added
	OutcomePartial      Outcome = "PARTIAL"       // title written, tag call failed
	OutcomeFetchFailed  Outcome = "FETCH_FAILED"  // document could not be loaded
	OutcomeNoTitle      Outcome = "NO_TITLE"      // model returned no usable title
	OutcomeUpdateFailed Outcome = "UPDATE_FAILED" // PATCH rejected
	OutcomeFailed       Outcome = "FAILED"        // panic, timeout or unexpected error
)

// Succeeded reports whether the document title was changed.
func (o Outcome) Succeeded() bool {
	return o == OutcomeTitled || o == OutcomeTagged || o == OutcomePartial
}
