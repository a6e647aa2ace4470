package onboarding

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (any, error)
	Save(key, value string)
	Saved(key string) (string, bool)
}

const workflowKey = "workflow_id"

// RegisterSteps registers workflow creation and action steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &onboardingSteps{tc: tc}
	ctx.Step(`^I start a sandbox "([^"]*)" workflow on playbook "([^"]*)" with outcome "([^"]*)"$`, steps.startSandboxWorkflow)
	ctx.Step(`^I start a "([^"]*)" workflow on playbook "([^"]*)"$`, steps.startWorkflow)
	ctx.Step(`^I send the "([^"]*)" action$`, steps.sendAction)
	ctx.Step(`^I fetch the workflow$`, steps.fetchWorkflow)
	ctx.Step(`^I fetch the workflow events$`, steps.fetchEvents)
}

type onboardingSteps struct {
	tc TestContext
}

func (s *onboardingSteps) startSandboxWorkflow(kind, playbookID, outcome string) error {
	return s.start(map[string]any{
		"kind":        kind,
		"playbook_id": playbookID,
		"is_sandbox":  true,
		"data": map[string]string{
			"id.first_name":   "Ada",
			"id.last_name":    "Lovelace",
			"id.dob":          "1990-12-10",
			"id.ssn9":         "123456789",
			"sandbox.outcome": outcome,
		},
	})
}

func (s *onboardingSteps) startWorkflow(kind, playbookID string) error {
	return s.start(map[string]any{"kind": kind, "playbook_id": playbookID})
}

func (s *onboardingSteps) start(body map[string]any) error {
	if err := s.tc.POST("/v1/workflows", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return nil
	}
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save(workflowKey, fmt.Sprint(v))
	return nil
}

func (s *onboardingSteps) sendAction(action string) error {
	wfID, err := s.workflowID()
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/workflows/"+wfID+"/actions", map[string]string{"action": action})
}

func (s *onboardingSteps) fetchWorkflow() error {
	wfID, err := s.workflowID()
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/workflows/" + wfID)
}

func (s *onboardingSteps) fetchEvents() error {
	wfID, err := s.workflowID()
	if err != nil {
		return err
	}
	return s.tc.GET("/v1/workflows/" + wfID + "/events")
}

func (s *onboardingSteps) workflowID() (string, error) {
	wfID, ok := s.tc.Saved(workflowKey)
	if !ok {
		return "", fmt.Errorf("no workflow started in this scenario")
	}
	return wfID, nil
}
