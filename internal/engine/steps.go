package engine

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/petrijr/agentsim/pkg/api"
)

const (
	defaultSource   = "github"
	defaultChannel  = "github"
	defaultTemplate = "{{workflow}}: update for {{contributor}} on {{repository}}"
)

func automatedOutput(step *api.ExecutionStep) api.StepOutput {
	cfg, _ := step.Config.(api.AutomatedConfig)
	return api.AutomatedOutput{
		Action:  cmp.Or(cfg.Action, step.ID),
		Result:  cmp.Or(cfg.Result, step.Name+" completed"),
		Success: true,
	}
}

// facts is the full set of values a data collection step can extract.
func facts(ctx api.ExecutionContext) map[string]string {
	c, r := ctx.Contributor, ctx.Repository
	return map[string]string{
		"login":              c.Login,
		"name":               c.Name,
		"contributions":      strconv.Itoa(c.Contributions),
		"first_contribution": strconv.FormatBool(c.FirstContribution),
		"location":           c.Location,
		"company":            c.Company,
		"repository":         r.FullName,
		"language":           r.Language,
		"stars":              strconv.Itoa(r.Stars),
		"open_issues":        strconv.Itoa(r.OpenIssues),
		"issues":             strconv.Itoa(len(ctx.Issues)),
		"pull_requests":      strconv.Itoa(len(ctx.PullRequests)),
	}
}

// collectData extracts facts about the execution's subject. When the step
// names fields, only those are reported; unknown fields map to "".
func collectData(exec *api.WorkflowExecution, step *api.ExecutionStep) api.StepOutput {
	cfg, _ := step.Config.(api.DataCollectionConfig)
	all := facts(exec.Context)

	out := all
	if len(cfg.Fields) > 0 {
		out = make(map[string]string, len(cfg.Fields))
		for _, f := range cfg.Fields {
			out[f] = all[f]
		}
	}

	sources := slices.Clone(cfg.Sources)
	if len(sources) == 0 {
		sources = []string{defaultSource}
	}
	return api.DataCollectionOutput{Sources: sources, Facts: out}
}

// notify renders the notification template. Channels fall back to the
// agent's preferences and then to github; recipients fall back to the
// contributor.
func notify(exec *api.WorkflowExecution, step *api.ExecutionStep, agent api.Agent) api.StepOutput {
	cfg, _ := step.Config.(api.NotificationConfig)
	r := strings.NewReplacer(
		"{{contributor}}", exec.Context.Contributor.Login,
		"{{repository}}", exec.Context.Repository.FullName,
		"{{workflow}}", exec.WorkflowName,
	)

	channels := slices.Clone(cfg.Channels)
	if len(channels) == 0 {
		channels = slices.Clone(agent.Config.Notifications.Channels)
	}
	if len(channels) == 0 {
		channels = []string{defaultChannel}
	}

	recipients := make([]string, 0, len(cfg.Recipients))
	for _, rc := range cfg.Recipients {
		recipients = append(recipients, r.Replace(rc))
	}
	if len(recipients) == 0 {
		recipients = []string{exec.Context.Contributor.Login}
	}

	return api.NotificationOutput{
		Sent:       true,
		Channels:   channels,
		Recipients: recipients,
		Message:    r.Replace(cmp.Or(cfg.Template, defaultTemplate)),
	}
}
