package workflows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/jcjurado/outreach/internal/activities"
	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/personas"
	"github.com/jcjurado/outreach/internal/policy"
)

// fakeActivities stands in for the activity set with scriptable behaviour.
type fakeActivities struct {
	mu sync.Mutex

	// generate returns the text for a persona on a given 1-based attempt.
	generate  func(personaID string, attempt int) (string, error)
	selectFn  func(in activities.SelectInput) (string, error)
	subjectFn func(in activities.SubjectInput) (string, error)
	formatFn  func(in activities.FormatInput) (string, error)
	policyFn  func(in activities.PolicyInput) (policy.Decision, error)
	sendFn    func(msg mail.Message) (mail.Receipt, error)

	genCalls     map[string]int
	selectInputs []activities.SelectInput
	subjectCalls int
	formatCalls  int
	policyCalls  int
	sent         []mail.Message
	archived     []activities.ArchiveInput
}

func newFakeActivities() *fakeActivities {
	return &fakeActivities{
		genCalls: make(map[string]int),
		generate: func(id string, _ int) (string, error) { return "text from " + id, nil },
		selectFn: func(in activities.SelectInput) (string, error) { return in.Candidates[0].Text, nil },
		subjectFn: func(activities.SubjectInput) (string, error) {
			return "Anvils that last", nil
		},
		formatFn: func(in activities.FormatInput) (string, error) {
			return "<p>" + in.Body + "</p>", nil
		},
		policyFn: func(activities.PolicyInput) (policy.Decision, error) {
			return policy.Decision{Allow: true, WouldAllow: true, Mode: policy.ModeOff}, nil
		},
		sendFn: func(mail.Message) (mail.Receipt, error) {
			return mail.Receipt{OK: true, StatusCode: 202, MessageID: "msg-1", Provider: "fake"}, nil
		},
	}
}

func (f *fakeActivities) register(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(f.GenerateCandidate, activity.RegisterOptions{Name: constants.GenerateCandidateActivity})
	env.RegisterActivityWithOptions(f.SelectCandidate, activity.RegisterOptions{Name: constants.SelectCandidateActivity})
	env.RegisterActivityWithOptions(f.WriteSubject, activity.RegisterOptions{Name: constants.WriteSubjectActivity})
	env.RegisterActivityWithOptions(f.ConvertFormat, activity.RegisterOptions{Name: constants.ConvertFormatActivity})
	env.RegisterActivityWithOptions(f.CheckDeliveryPolicy, activity.RegisterOptions{Name: constants.CheckDeliveryPolicyActivity})
	env.RegisterActivityWithOptions(f.SendEmail, activity.RegisterOptions{Name: constants.SendEmailActivity})
	env.RegisterActivityWithOptions(f.ArchiveRun, activity.RegisterOptions{Name: constants.ArchiveRunActivity})
}

func (f *fakeActivities) GenerateCandidate(_ context.Context, in activities.GenerateInput) (activities.GenerateResult, error) {
	f.mu.Lock()
	f.genCalls[in.Persona.ID]++
	attempt := f.genCalls[in.Persona.ID]
	f.mu.Unlock()

	text, err := f.generate(in.Persona.ID, attempt)
	if err != nil {
		return activities.GenerateResult{}, err
	}
	out := activities.GenerateResult{}
	out.Candidate.GeneratorID = in.Persona.ID
	out.Candidate.Text = text
	out.Candidate.ProducedAt = time.Date(2026, 1, 1, 0, 0, attempt, 0, time.UTC)
	return out, nil
}

func (f *fakeActivities) SelectCandidate(_ context.Context, in activities.SelectInput) (activities.SelectResult, error) {
	f.mu.Lock()
	f.selectInputs = append(f.selectInputs, in)
	f.mu.Unlock()
	text, err := f.selectFn(in)
	return activities.SelectResult{Text: text}, err
}

func (f *fakeActivities) WriteSubject(_ context.Context, in activities.SubjectInput) (activities.SubjectResult, error) {
	f.mu.Lock()
	f.subjectCalls++
	f.mu.Unlock()
	s, err := f.subjectFn(in)
	return activities.SubjectResult{Subject: s}, err
}

func (f *fakeActivities) ConvertFormat(_ context.Context, in activities.FormatInput) (activities.FormatResult, error) {
	f.mu.Lock()
	f.formatCalls++
	f.mu.Unlock()
	b, err := f.formatFn(in)
	return activities.FormatResult{Body: b}, err
}

func (f *fakeActivities) CheckDeliveryPolicy(_ context.Context, in activities.PolicyInput) (policy.Decision, error) {
	f.mu.Lock()
	f.policyCalls++
	f.mu.Unlock()
	return f.policyFn(in)
}

func (f *fakeActivities) SendEmail(_ context.Context, msg mail.Message) (mail.Receipt, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return f.sendFn(msg)
}

func (f *fakeActivities) ArchiveRun(_ context.Context, in activities.ArchiveInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, in)
	return nil
}

// textsByPersona maps each persona to a fixed candidate text.
func textsByPersona(texts map[string]string) func(string, int) (string, error) {
	return func(id string, _ int) (string, error) {
		t, ok := texts[id]
		if !ok {
			return "", fmt.Errorf("no text scripted for %s", id)
		}
		return t, nil
	}
}

func timeoutErr(id string) error {
	return llm.NewGenerationError("fake", id, context.DeadlineExceeded)
}

var errProviderDown = errors.New("provider unavailable")

func testTimeouts() config.Timeouts {
	return config.Timeouts{
		Generation: time.Minute,
		Selection:  time.Minute,
		Subject:    30 * time.Second,
		Format:     time.Minute,
		Policy:     10 * time.Second,
		Send:       30 * time.Second,
		Run:        10 * time.Minute,
	}
}

func testRunInput() RunInput {
	return RunInput{
		RunID:   "run-1",
		Mode:    ModeCampaign,
		Message: "Introduce our anvil subscription to a hardware CTO",
		Personas: []personas.Persona{
			personas.Default(personas.KindProfessional, "Acme Anvils", "gpt-4o-mini"),
			personas.Default(personas.KindEngaging, "Acme Anvils", "gpt-4o-mini"),
			personas.Default(personas.KindDirect, "Acme Anvils", "gpt-4o-mini"),
		},
		Selector: AgentSpec{ModelID: "gpt-4o-mini"},
		Delivery: DeliveryOptions{
			Sender:      "sales@acme.test",
			Recipient:   "cto@prospect.test",
			Subject:     AgentSpec{ModelID: "gpt-4o-mini"},
			Format:      AgentSpec{ModelID: "gpt-4o-mini"},
			ContentType: mail.ContentHTML,
		},
		Retries:  RetryOptions{GenerationRetries: 1, SelectionRetries: 1, InitialInterval: time.Second},
		Timeouts: testTimeouts(),
	}
}
