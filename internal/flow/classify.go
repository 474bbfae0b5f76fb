package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tonimelisma/globus-transfer/internal/globus"
)

// OutcomeKind is the guidance branch chosen for a failed submission.
type OutcomeKind int

const (
	// OutcomeOther is any error that did not come from the transfer API.
	OutcomeOther OutcomeKind = iota
	OutcomeConsentRequired
	OutcomeSessionRequired
	OutcomeAPIError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeConsentRequired:
		return "consent required"
	case OutcomeSessionRequired:
		return "session required"
	case OutcomeAPIError:
		return "api error"
	default:
		return "other"
	}
}

// Outcome is a classified error plus the lines to show the user.
type Outcome struct {
	Kind  OutcomeKind
	Lines []string
}

const reauthURL = "https://app.globus.org"

// Classify picks the guidance for a submission error. Consent takes
// precedence over session requirements.
func Classify(err error) Outcome {
	var apiErr *globus.TransferAPIError
	if !errors.As(err, &apiErr) {
		return Outcome{Kind: OutcomeOther, Lines: []string{err.Error()}}
	}

	if apiErr.Info.ConsentRequired != nil {
		return Outcome{
			Kind:  OutcomeConsentRequired,
			Lines: []string{"Consent error: one or more collection requires consent, please login again."},
		}
	}

	if ap := apiErr.Info.AuthorizationParameters; ap != nil && len(ap.SessionRequiredSingleDomain) > 0 {
		domains := strings.Join(ap.SessionRequiredSingleDomain, ",")

		return Outcome{
			Kind: OutcomeSessionRequired,
			Lines: []string{
				fmt.Sprintf("%s  :  %s", ap.SessionMessage, domains),
				fmt.Sprintf("Your authentication with domain %s needs to be refreshed. "+
					"Please go to %s and navigate to the collection manually to re-authenticate, then retry here.",
					domains, reauthURL),
			},
		}
	}

	return Outcome{
		Kind:  OutcomeAPIError,
		Lines: []string{"A transfer API error occurred\n " + apiErr.Error()},
	}
}
