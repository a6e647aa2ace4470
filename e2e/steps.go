package e2e

import (
	"github.com/cucumber/godog"

	"idv/e2e/steps/common"
	"idv/e2e/steps/onboarding"
	"idv/e2e/steps/rules"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Tenant selection and generic response assertions
	common.RegisterSteps(ctx, tc)

	// Rule import through the admin API
	rules.RegisterSteps(ctx, tc)

	// Workflow creation and actions
	onboarding.RegisterSteps(ctx, tc)
}
