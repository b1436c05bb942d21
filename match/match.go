// Package match provides gomega matchers over the calls recorded by mockfn
// mocks.  Actual values must expose their call log:
//
//	Expect(m).To(HaveCallCount(2))
//	Expect(m).To(HaveBeenCalledWith(2, BeNumerically(">", 0)))
package match

import (
	"fmt"

	"github.com/onsi/gomega"
	"github.com/onsi/gomega/format"
	"github.com/onsi/gomega/types"

	mockfn "github.com/Versent/go-mockfn"
)

// Recorder is implemented by every mockfn.Mock.
type Recorder interface {
	Calls() *mockfn.CallLog
}

func callLog(actual any) (*mockfn.CallLog, error) {
	switch v := actual.(type) {
	case Recorder:
		return v.Calls(), nil
	case *mockfn.CallLog:
		return v, nil
	default:
		return nil, fmt.Errorf("expected a mock or *mockfn.CallLog, got:\n%s", format.Object(actual, 1))
	}
}

// HaveCallCount succeeds when the mock was called exactly n times.
func HaveCallCount(n int) types.GomegaMatcher {
	return &callCountMatcher{expected: n}
}

// HaveBeenCalled succeeds when the mock was called at least once.
func HaveBeenCalled() types.GomegaMatcher {
	return &calledMatcher{}
}

// HaveBeenCalledWith succeeds when any call was made with arguments matching
// args.  Each expected argument is either a matcher or a value compared with
// gomega.Equal.
func HaveBeenCalledWith(args ...any) types.GomegaMatcher {
	return &calledWithMatcher{index: -1, args: args}
}

// HaveCallWith succeeds when call i was made with arguments matching args.
func HaveCallWith(i int, args ...any) types.GomegaMatcher {
	return &calledWithMatcher{index: i, args: args}
}

// HaveResolvedWith succeeds when the latest call resolved with a value
// matching expected.
func HaveResolvedWith(expected any) types.GomegaMatcher {
	return &resolvedMatcher{expected: expected}
}

type callCountMatcher struct {
	expected int
	actual   int
}

func (m *callCountMatcher) Match(actual any) (bool, error) {
	log, err := callLog(actual)
	if err != nil {
		return false, err
	}
	m.actual = log.Len()
	return m.actual == m.expected, nil
}

func (m *callCountMatcher) FailureMessage(any) string {
	return fmt.Sprintf("Expected %d calls, got %d", m.expected, m.actual)
}

func (m *callCountMatcher) NegatedFailureMessage(any) string {
	return fmt.Sprintf("Expected a call count other than %d", m.expected)
}

type calledMatcher struct{}

func (m *calledMatcher) Match(actual any) (bool, error) {
	log, err := callLog(actual)
	if err != nil {
		return false, err
	}
	return log.Len() > 0, nil
}

func (m *calledMatcher) FailureMessage(any) string {
	return "Expected at least one call, got none"
}

func (m *calledMatcher) NegatedFailureMessage(actual any) string {
	log, _ := callLog(actual)
	return fmt.Sprintf("Expected no calls, got %d", log.Len())
}

type calledWithMatcher struct {
	index int
	args  []any
	calls []*mockfn.CallRecord
}

func (m *calledWithMatcher) Match(actual any) (bool, error) {
	log, err := callLog(actual)
	if err != nil {
		return false, err
	}
	m.calls = log.All()
	if m.index >= 0 {
		rec := log.At(m.index)
		if rec == nil {
			return false, nil
		}
		return argsMatch(rec.Arguments(), m.args)
	}
	for _, rec := range m.calls {
		ok, err := argsMatch(rec.Arguments(), m.args)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (m *calledWithMatcher) FailureMessage(any) string {
	return fmt.Sprintf("Expected %s with arguments\n%s\ngot\n%s", m.which(), format.Object(m.args, 1), m.describe())
}

func (m *calledWithMatcher) NegatedFailureMessage(any) string {
	return fmt.Sprintf("Expected no %s with arguments\n%s", m.which(), format.Object(m.args, 1))
}

func (m *calledWithMatcher) which() string {
	if m.index >= 0 {
		return fmt.Sprintf("call %d", m.index)
	}
	return "a call"
}

func (m *calledWithMatcher) describe() string {
	if len(m.calls) == 0 {
		return format.Indent + "no calls"
	}
	s := ""
	for _, rec := range m.calls {
		s += format.Indent + rec.String() + "\n"
	}
	return s
}

func argsMatch(actual, expected []any) (bool, error) {
	if len(actual) != len(expected) {
		return false, nil
	}
	for i, want := range expected {
		matcher, ok := want.(types.GomegaMatcher)
		if !ok {
			matcher = gomega.Equal(want)
		}
		if want == nil {
			matcher = gomega.BeNil()
		}
		ok, err := matcher.Match(actual[i])
		if err != nil {
			return false, fmt.Errorf("argument %d: %w", i, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

type resolvedMatcher struct {
	expected any
	rec      *mockfn.CallRecord
}

func (m *resolvedMatcher) Match(actual any) (bool, error) {
	log, err := callLog(actual)
	if err != nil {
		return false, err
	}
	rec, ok := log.Latest()
	if !ok {
		return false, nil
	}
	m.rec = rec
	if rec.Kind() != mockfn.Resolved {
		return false, nil
	}
	matcher, ok := m.expected.(types.GomegaMatcher)
	if !ok {
		matcher = gomega.Equal(m.expected)
	}
	return matcher.Match(rec.Value())
}

func (m *resolvedMatcher) FailureMessage(any) string {
	if m.rec == nil {
		return "Expected the latest call to resolve, got no calls"
	}
	return fmt.Sprintf("Expected the latest call to resolve with\n%s\ngot %s with\n%s",
		format.Object(m.expected, 1), m.rec.Kind(), format.Object(m.rec.Value(), 1))
}

func (m *resolvedMatcher) NegatedFailureMessage(any) string {
	return fmt.Sprintf("Expected the latest call not to resolve with\n%s", format.Object(m.expected, 1))
}
