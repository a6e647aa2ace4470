package rules

import (
	"fmt"
	"net/url"
	"os"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AdminPOST(path, contentType string, body []byte) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers rule administration steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ruleSteps{tc: tc}
	ctx.Step(`^the rules in "([^"]*)" are imported for playbook "([^"]*)"$`, steps.importRules)
}

type ruleSteps struct {
	tc TestContext
}

func (s *ruleSteps) importRules(path, playbookID string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}
	target := "/v1/admin/playbooks/" + url.PathEscape(playbookID) + "/rules/import?is_live=false"
	if err := s.tc.AdminPOST(target, "application/yaml", body); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 201 {
		return fmt.Errorf("rule import failed with status %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}
