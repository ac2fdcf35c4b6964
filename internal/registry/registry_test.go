package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/db"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/service"
	"github.com/jcjurado/outreach/internal/workflows"
)

type recordingTarget struct {
	workflows  []string
	activities []string
}

func (r *recordingTarget) RegisterWorkflowWithOptions(_ interface{}, options workflow.RegisterOptions) {
	r.workflows = append(r.workflows, options.Name)
}

func (r *recordingTarget) RegisterActivityWithOptions(_ interface{}, options activity.RegisterOptions) {
	r.activities = append(r.activities, options.Name)
}

type memoryArchiver struct {
	mu   sync.Mutex
	runs []*db.RunRecord
}

func (m *memoryArchiver) SaveRun(_ context.Context, rec *db.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, rec)
	return nil
}

// scriptedProvider answers by agent: personas write, the picker prefers the
// engaging draft, the delivery writers return fixed output.
func scriptedProvider() llm.Provider {
	return llm.ProviderFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		switch req.AgentID {
		case "sales_picker":
			return llm.Response{Text: "Email from engaging", ModelUsed: req.ModelID}, nil
		case "subject_writer":
			return llm.Response{Text: "Quick question", ModelUsed: req.ModelID}, nil
		case "html_converter":
			return llm.Response{Text: "<p>Email from engaging</p>", ModelUsed: req.ModelID}, nil
		}
		return llm.Response{Text: "Email from " + req.AgentID, ModelUsed: req.ModelID}, nil
	})
}

func TestRegistryRegistersEveryName(t *testing.T) {
	reg := NewOutreachRegistry(Dependencies{
		Provider:  scriptedProvider(),
		Transport: mail.NewLogTransport(zap.NewNop()),
	}, zap.NewNop())

	target := &recordingTarget{}
	require.NoError(t, reg.Register(target))

	assert.ElementsMatch(t, []string{constants.OutreachWorkflowName, constants.DeliveryWorkflowName}, target.workflows)
	assert.ElementsMatch(t, []string{
		constants.GenerateCandidateActivity,
		constants.SelectCandidateActivity,
		constants.WriteSubjectActivity,
		constants.ConvertFormatActivity,
		constants.CheckDeliveryPolicyActivity,
		constants.SendEmailActivity,
		constants.ArchiveRunActivity,
	}, target.activities)
}

func TestRegistryRequiresProviderAndTransport(t *testing.T) {
	target := &recordingTarget{}

	err := NewOutreachRegistry(Dependencies{Transport: mail.NewLogTransport(nil)}, nil).RegisterActivities(target)
	assert.Error(t, err)

	err = NewOutreachRegistry(Dependencies{Provider: scriptedProvider()}, nil).RegisterActivities(target)
	assert.Error(t, err)
	assert.Empty(t, target.activities)
}

func TestRegisteredCampaignRunsEndToEnd(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	archiver := &memoryArchiver{}

	reg := NewOutreachRegistry(Dependencies{
		Provider:  scriptedProvider(),
		Transport: mail.NewLogTransport(zap.NewNop()),
		Archiver:  archiver,
	}, zap.NewNop())
	require.NoError(t, reg.Register(env))

	cfg, err := config.Load("")
	require.NoError(t, err)
	in, err := service.BuildRunInput(cfg, "campaign-e2e", workflows.ModeCampaign,
		"Launch of the Q3 analytics suite", "sales@acme.test", "cto@prospect.test", "")
	require.NoError(t, err)

	env.ExecuteWorkflow(constants.OutreachWorkflowName, in)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res workflows.RunResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, "Email from engaging", res.FinalText)
	assert.Equal(t, "engaging", res.FinalAgentLabel)
	assert.False(t, res.SelectionMismatch)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "professional", res.Candidates[0].GeneratorID)
	assert.Equal(t, "Quick question", res.Delivery.Subject)
	assert.Equal(t, mail.ContentHTML, res.Delivery.ContentType)
	assert.Equal(t, 202, res.Delivery.Receipt.StatusCode)

	require.Len(t, archiver.runs, 1)
	assert.Equal(t, "campaign-e2e", archiver.runs[0].RunID)
	assert.Equal(t, string(workflows.StatusDelivered), archiver.runs[0].Status)
}

func TestRegisteredReplyRunsEndToEnd(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	reg := NewOutreachRegistry(Dependencies{
		Provider:  scriptedProvider(),
		Transport: mail.NewLogTransport(zap.NewNop()),
	}, zap.NewNop())
	require.NoError(t, reg.Register(env))

	cfg, err := config.Load("")
	require.NoError(t, err)
	in, err := service.BuildRunInput(cfg, "reply-e2e", workflows.ModeReply,
		"How much does it cost?", "sales@acme.test", "jane@prospect.test", service.ReplySubject("Pricing"))
	require.NoError(t, err)

	env.ExecuteWorkflow(constants.OutreachWorkflowName, in)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res workflows.RunResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, "RE: Pricing", res.Delivery.Subject)
	assert.Equal(t, mail.ContentText, res.Delivery.ContentType)
}
