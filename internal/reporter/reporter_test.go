package reporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"taut/internal/discovery"
	"taut/internal/model"
)

func TestExitCodeAllPassed(t *testing.T) {
	s := Summary{Results: []model.TestResult{{ID: "a", Outcome: model.OutcomePassed}}}
	assert.Equal(t, ExitOK, ExitCode(s))
}

func TestExitCodeFailurePropagates(t *testing.T) {
	s := Summary{Results: []model.TestResult{
		{ID: "a", Outcome: model.OutcomePassed},
		{ID: "b", Outcome: model.OutcomeFailed},
	}}
	assert.Equal(t, ExitTestFailure, ExitCode(s))
}

func TestExitCodeErroredPropagates(t *testing.T) {
	s := Summary{Results: []model.TestResult{{ID: "a", Outcome: model.OutcomeErrored}}}
	assert.Equal(t, ExitTestFailure, ExitCode(s))
}

func TestExitCodeDiscoveryErrorPropagates(t *testing.T) {
	s := Summary{DiscoveryErrors: []discovery.Error{{File: "bad.py"}}}
	assert.Equal(t, ExitTestFailure, ExitCode(s))
}

func TestExitCodeReplacementsExhaustedWins(t *testing.T) {
	s := Summary{
		Results:               []model.TestResult{{ID: "a", Outcome: model.OutcomeFailed}},
		ReplacementsExhausted: true,
	}
	assert.Equal(t, ExitInternalError, ExitCode(s))
}

func TestWriteIncludesTallyLine(t *testing.T) {
	s := Summary{Results: []model.TestResult{
		{ID: "a", Outcome: model.OutcomePassed},
		{ID: "b", Outcome: model.OutcomeFailed, Error: &model.ResultError{Message: "boom"}},
	}}
	var buf bytes.Buffer
	Write(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "1 passed, 1 failed, 0 errored, 0 skipped")
	assert.Contains(t, out, "boom")
}
