package places

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	OutcomeOK Kind = iota
	// OutcomeCached means the group was already populated in this cycle.
	OutcomeCached
	OutcomeConfigError
	OutcomeRemoteError
	OutcomeParseError
)

func (k Kind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeCached:
		return "cached"
	case OutcomeConfigError:
		return "config_error"
	case OutcomeRemoteError:
		return "remote_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for c := OutcomeOK; c <= OutcomeParseError; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

func (k Kind) Failed() bool { return k >= OutcomeConfigError }

// Classify maps an error from one group update onto an outcome kind.
// Anything that is neither a configuration nor a parse problem came from a
// remote call.
func Classify(err error) Kind {
	var (
		ce *ConfigError
		pe *ParseError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &ce):
		return OutcomeConfigError
	case errors.As(err, &pe):
		return OutcomeParseError
	default:
		return OutcomeRemoteError
	}
}

// Outcome is the result of updating one place group.
type Outcome struct {
	Identifier string        `json:"identifier"`
	GroupID    string        `json:"groupId,omitempty"`
	Kind       Kind          `json:"outcome"`
	Query      string        `json:"query,omitempty"`
	Features   int           `json:"features"`
	Dropped    int           `json:"dropped,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Report summarizes one update cycle.
type Report struct {
	CycleID  string        `json:"cycleId"`
	Skipped  bool          `json:"skipped,omitempty"`
	Aborted  bool          `json:"aborted,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Outcomes []Outcome     `json:"outcomes"`
	Elapsed  time.Duration `json:"elapsed"`
}

func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind.Failed() {
			n++
		}
	}
	return n
}

// Result is a coarse label for metrics: ok, partial, failed or skipped.
func (r Report) Result() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Err != nil:
		return "failed"
	case r.Failed() == 0:
		return "ok"
	case r.Failed() == len(r.Outcomes):
		return "failed"
	default:
		return "partial"
	}
}

// Errors joins the cycle error and every failed group's error.
func (r Report) Errors() error {
	errs := []error{r.Err}
	for _, o := range r.Outcomes {
		if o.Kind.Failed() {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
