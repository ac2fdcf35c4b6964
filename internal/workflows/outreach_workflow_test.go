package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/jcjurado/outreach/internal/activities"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/policy"
)

type OutreachWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env  *testsuite.TestWorkflowEnvironment
	acts *fakeActivities
}

func (s *OutreachWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(OutreachWorkflow)
	s.env.RegisterWorkflow(DeliveryWorkflow)
	s.acts = newFakeActivities()
	s.acts.register(s.env)
}

func (s *OutreachWorkflowTestSuite) run(in RunInput) (RunResult, error) {
	s.env.ExecuteWorkflow(OutreachWorkflow, in)
	s.Require().True(s.env.IsWorkflowCompleted())
	if err := s.env.GetWorkflowError(); err != nil {
		return RunResult{}, err
	}
	var res RunResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	return res, nil
}

func (s *OutreachWorkflowTestSuite) requireFailure(err error, kind ErrorKind, stage Stage) *OrchestrationError {
	s.Require().Error(err)
	oe, ok := AsOrchestrationError(err)
	s.Require().True(ok, "expected an orchestration error, got %v", err)
	s.Equal(kind, oe.Kind)
	s.Equal(stage, oe.Stage)
	return oe
}

func candidateTexts(in activities.SelectInput) []string {
	out := make([]string, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		out = append(out, c.Text)
	}
	return out
}

// Scenario A: the selector's verbatim answer wins.
func (s *OutreachWorkflowTestSuite) TestSelectsVerbatimAnswer() {
	s.acts.generate = textsByPersona(map[string]string{"professional": "P1", "engaging": "P2", "direct": "P3"})
	s.acts.selectFn = func(activities.SelectInput) (string, error) { return "P2", nil }

	res, err := s.run(testRunInput())
	s.Require().NoError(err)

	s.Equal("P2", res.FinalText)
	s.Equal("engaging", res.FinalAgentLabel)
	s.Equal("Engaging Sales Agent", res.FinalAgentName)
	s.False(res.SelectionMismatch)

	s.Require().Len(s.acts.selectInputs, 1)
	s.Equal([]string{"P1", "P2", "P3"}, candidateTexts(s.acts.selectInputs[0]))

	s.Require().Len(s.acts.sent, 1)
	sent := s.acts.sent[0]
	s.Equal("<p>P2</p>", sent.Body)
	s.Equal("Anvils that last", sent.Subject)
	s.Equal(mail.ContentHTML, sent.ContentType)
	s.Equal("cto@prospect.test", sent.To)
	s.Equal(202, res.Delivery.Receipt.StatusCode)
}

// Scenario B: a generator that times out on every attempt is dropped after
// its retry budget and selection proceeds with the rest.
func (s *OutreachWorkflowTestSuite) TestDegradesWhenOneGeneratorExhaustsRetries() {
	s.acts.generate = func(id string, _ int) (string, error) {
		switch id {
		case "professional":
			return "A", nil
		case "direct":
			return "B", nil
		}
		return "", timeoutErr(id)
	}
	s.acts.selectFn = func(activities.SelectInput) (string, error) { return "B", nil }

	res, err := s.run(testRunInput())
	s.Require().NoError(err)

	s.Equal("B", res.FinalText)
	s.Equal("direct", res.FinalAgentLabel)
	s.Equal(2, s.acts.genCalls["engaging"])
	s.Equal(1, s.acts.genCalls["professional"])
	s.Require().Len(s.acts.selectInputs, 1)
	s.Equal([]string{"A", "B"}, candidateTexts(s.acts.selectInputs[0]))
	s.NotEmpty(res.Warnings)
}

// Scenario C: an answer that matches no candidate falls back to the first.
func (s *OutreachWorkflowTestSuite) TestSelectionMismatchFallsBackToFirst() {
	s.acts.generate = textsByPersona(map[string]string{"professional": "A", "engaging": "B", "direct": "C"})
	s.acts.selectFn = func(activities.SelectInput) (string, error) { return "XYZ", nil }

	res, err := s.run(testRunInput())
	s.Require().NoError(err)

	s.Equal("A", res.FinalText)
	s.Equal("professional", res.FinalAgentLabel)
	s.True(res.SelectionMismatch)
	s.Require().Len(s.acts.sent, 1)
	s.Equal("<p>A</p>", s.acts.sent[0].Body)
}

// Scenario D: a provider error on send is a DeliveryError at the transport stage.
func (s *OutreachWorkflowTestSuite) TestTransportFailureIsDeliveryError() {
	s.acts.sendFn = func(mail.Message) (mail.Receipt, error) {
		return mail.Receipt{}, temporal.NewNonRetryableApplicationError("sendgrid send failed with status 500", "TransportError", nil)
	}

	_, err := s.run(testRunInput())
	oe := s.requireFailure(err, KindDeliveryError, StageTransport)
	s.Contains(oe.Detail, "500")
	s.Len(s.acts.sent, 1)

	s.Require().Len(s.acts.archived, 1)
	s.Equal(string(StatusFailed), s.acts.archived[0].Status)
	s.Equal(string(DeliverySendFailed), s.acts.archived[0].DeliveryStatus)
}

func (s *OutreachWorkflowTestSuite) TestAllGeneratorsFailed() {
	s.acts.generate = func(string, int) (string, error) { return "", errProviderDown }

	_, err := s.run(testRunInput())
	s.requireFailure(err, KindAllGeneratorsFailed, StageGeneration)

	for _, id := range []string{"professional", "engaging", "direct"} {
		s.Equal(2, s.acts.genCalls[id], id)
	}
	s.Empty(s.acts.selectInputs)
	s.Zero(s.acts.subjectCalls)
	s.Empty(s.acts.sent)
}

func (s *OutreachWorkflowTestSuite) TestRetriedGeneratorStillContributes() {
	s.acts.generate = func(id string, attempt int) (string, error) {
		if id == "engaging" && attempt == 1 {
			return "", errProviderDown
		}
		return "text " + id, nil
	}

	res, err := s.run(testRunInput())
	s.Require().NoError(err)
	s.Len(res.Candidates, 3)
	s.Require().Len(s.acts.selectInputs, 1)
	s.Equal([]string{"text professional", "text engaging", "text direct"}, candidateTexts(s.acts.selectInputs[0]))
}

func (s *OutreachWorkflowTestSuite) TestSelectionFailureAfterRetries() {
	s.acts.selectFn = func(activities.SelectInput) (string, error) { return "", errProviderDown }

	_, err := s.run(testRunInput())
	s.requireFailure(err, KindSelectionError, StageSelection)
	s.Len(s.acts.selectInputs, 2)
	s.Empty(s.acts.sent)
}

func (s *OutreachWorkflowTestSuite) TestReplyModeSkipsSubjectAndFormat() {
	in := testRunInput()
	in.Mode = ModeReply
	in.Delivery.Recipient = "lead@prospect.test"
	in.Delivery.SubjectOverride = "RE: Pricing"
	in.Delivery.ContentType = mail.ContentText
	s.acts.generate = textsByPersona(map[string]string{"professional": "Thanks!", "engaging": "Hey!", "direct": "Yes."})

	res, err := s.run(in)
	s.Require().NoError(err)

	s.Zero(s.acts.subjectCalls)
	s.Zero(s.acts.formatCalls)
	s.Require().Len(s.acts.sent, 1)
	sent := s.acts.sent[0]
	s.Equal("RE: Pricing", sent.Subject)
	s.Equal(mail.ContentText, sent.ContentType)
	s.Equal("Thanks!", sent.Body)
	s.Equal("lead@prospect.test", sent.To)
	s.Equal(mail.ContentText, res.Delivery.ContentType)
}

func (s *OutreachWorkflowTestSuite) TestSubjectFailureIsFatalWithoutFallback() {
	s.acts.subjectFn = func(activities.SubjectInput) (string, error) { return "", errProviderDown }

	_, err := s.run(testRunInput())
	s.requireFailure(err, KindDeliveryError, StageSubject)
	s.Equal(1, s.acts.subjectCalls)
	s.Zero(s.acts.formatCalls)
	s.Empty(s.acts.sent)
}

func (s *OutreachWorkflowTestSuite) TestFallbackSubjectKeepsDeliveryAlive() {
	in := testRunInput()
	in.Delivery.FallbackSubject = "Quick question"
	s.acts.subjectFn = func(activities.SubjectInput) (string, error) { return "", errProviderDown }

	res, err := s.run(in)
	s.Require().NoError(err)
	s.True(res.Delivery.SubjectFallback)
	s.Require().Len(s.acts.sent, 1)
	s.Equal("Quick question", s.acts.sent[0].Subject)
}

func (s *OutreachWorkflowTestSuite) TestFormatFailureIsDeliveryError() {
	s.acts.formatFn = func(activities.FormatInput) (string, error) { return "", errProviderDown }

	_, err := s.run(testRunInput())
	s.requireFailure(err, KindDeliveryError, StageFormat)
	s.Empty(s.acts.sent)
}

func (s *OutreachWorkflowTestSuite) TestPolicyDenialBlocksSend() {
	s.acts.policyFn = func(activities.PolicyInput) (policy.Decision, error) {
		return policy.Decision{Allow: false, Reason: "recipient domain prospect.test is blocked", Mode: policy.ModeEnforce}, nil
	}

	_, err := s.run(testRunInput())
	oe := s.requireFailure(err, KindDeliveryError, StagePolicy)
	s.Contains(oe.Detail, "blocked")
	s.Equal(1, s.acts.policyCalls)
	s.Empty(s.acts.sent)
}

func (s *OutreachWorkflowTestSuite) TestRunStateQueryAfterDelivery() {
	s.acts.generate = textsByPersona(map[string]string{"professional": "P1", "engaging": "P2", "direct": "P3"})
	s.acts.selectFn = func(activities.SelectInput) (string, error) { return "P3", nil }

	_, err := s.run(testRunInput())
	s.Require().NoError(err)

	val, err := s.env.QueryWorkflow(constants.QueryRunState)
	s.Require().NoError(err)
	var state RunState
	s.Require().NoError(val.Get(&state))

	s.Equal(StatusDelivered, state.Status)
	s.Require().Len(state.Candidates, 3)
	s.Equal("professional", state.Candidates[0].GeneratorID)
	s.Equal("direct", state.Candidates[2].GeneratorID)
	s.Require().NotNil(state.Selected)
	s.Equal("P3", state.Selected.Text)
	s.Require().NotNil(state.Delivery)
	s.Equal(DeliverySent, state.Delivery.Status)

	s.Require().Len(s.acts.archived, 1)
	s.Equal(string(StatusDelivered), s.acts.archived[0].Status)
	s.Equal("direct", s.acts.archived[0].Selected.GeneratorID)
}

func (s *OutreachWorkflowTestSuite) TestInvalidInputRejectedBeforeWork() {
	in := testRunInput()
	in.Message = ""

	_, err := s.run(in)
	s.Require().Error(err)
	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr))
	s.Equal(KindInvalidInput, appErr.Type())
	s.Empty(s.acts.genCalls)

	val, qerr := s.env.QueryWorkflow(constants.QueryRunState)
	s.Require().NoError(qerr)
	var state RunState
	s.Require().NoError(val.Get(&state))
	s.Equal(StatusFailed, state.Status)
	s.Equal(ErrorKind(KindInvalidInput), state.ErrorKind)

	s.Require().Len(s.acts.archived, 1)
	s.Equal(string(StatusFailed), s.acts.archived[0].Status)
	s.Equal(KindInvalidInput, s.acts.archived[0].ErrorKind)
	s.Equal(string(DeliveryNotSent), s.acts.archived[0].DeliveryStatus)
}

// A cancel that lands while the email is being sent lets the send finish
// once, and the run records the email as sent.
func (s *OutreachWorkflowTestSuite) TestCancelDuringSendRecordsSentEmail() {
	s.env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, _ converter.EncodedValues) {
		if info.ActivityType.Name == constants.SendEmailActivity {
			s.env.CancelWorkflow()
		}
	})

	s.env.ExecuteWorkflow(OutreachWorkflow, testRunInput())
	s.Require().True(s.env.IsWorkflowCompleted())

	err := s.env.GetWorkflowError()
	s.Require().Error(err)
	s.True(temporal.IsCanceledError(err), "unexpected error: %v", err)
	s.Len(s.acts.sent, 1)

	val, qerr := s.env.QueryWorkflow(constants.QueryRunState)
	s.Require().NoError(qerr)
	var state RunState
	s.Require().NoError(val.Get(&state))
	s.Equal(StatusCancelled, state.Status)
	s.Require().NotNil(state.Delivery)
	s.Equal(DeliverySent, state.Delivery.Status)
	s.Nil(state.Delivery.Receipt)

	s.Require().Len(s.acts.archived, 1)
	s.Equal(string(StatusCancelled), s.acts.archived[0].Status)
	s.Equal(string(DeliverySent), s.acts.archived[0].DeliveryStatus)
}

func (s *OutreachWorkflowTestSuite) TestCancelBeforeSendLeavesEmailUnsent() {
	s.env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, _ converter.EncodedValues) {
		if info.ActivityType.Name == constants.ConvertFormatActivity {
			s.env.CancelWorkflow()
		}
	})

	s.env.ExecuteWorkflow(OutreachWorkflow, testRunInput())
	s.Require().True(s.env.IsWorkflowCompleted())
	s.True(temporal.IsCanceledError(s.env.GetWorkflowError()))
	s.Empty(s.acts.sent)

	val, qerr := s.env.QueryWorkflow(constants.QueryRunState)
	s.Require().NoError(qerr)
	var state RunState
	s.Require().NoError(val.Get(&state))
	s.Equal(StatusCancelled, state.Status)
	s.Require().NotNil(state.Delivery)
	s.Equal(DeliveryNotSent, state.Delivery.Status)
	s.Equal("cto@prospect.test", state.Delivery.Recipient)

	s.Require().Len(s.acts.archived, 1)
	s.Equal(string(StatusCancelled), s.acts.archived[0].Status)
	s.Equal(string(DeliveryNotSent), s.acts.archived[0].DeliveryStatus)
}

func TestOutreachWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(OutreachWorkflowTestSuite))
}
