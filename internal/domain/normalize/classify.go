package normalize

import (
	"strings"

	"github.com/okian/raidtrack/internal/domain/model"
)

// StateRule maps an upstream marker to a state. Pattern is matched as a substring
// of the uppercased label.
type StateRule struct {
	Pattern string
	State   model.State
}

// DefaultStateRules are evaluated in order; the first match wins.
var DefaultStateRules = []StateRule{
	{Pattern: "NON PARTANT", State: model.StateNotStarted},
	{Pattern: "ABANDON", State: model.StateAbandoned},
	{Pattern: "FINISHER", State: model.StateFinisher},
}

// DefaultNonDataMarkers are labels of header or ranking rows that some page
// layouts echo into the passage table.
var DefaultNonDataMarkers = []string{
	"POINT",
	"POINT DE PASSAGE",
	"POINTS DE PASSAGE",
	"CHECKPOINT",
	"CLASSEMENT",
	"LIEU",
}

// ClassifyState applies the ordered rules. A blank label is Unknown, any other
// unmatched label means the runner is still racing.
func ClassifyState(label string, rules []StateRule) model.State {
	if blank(label) {
		return model.StateUnknown
	}
	up := fold(label)
	for _, r := range rules {
		if strings.Contains(up, fold(r.Pattern)) {
			return r.State
		}
	}
	return model.StateRacing
}
