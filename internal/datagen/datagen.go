// Package datagen synthesizes contributors, repositories, issues and pull
// requests for simulated executions. Content is random; shape is fixed.
package datagen

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/petrijr/agentsim/pkg/api"
)

var (
	logins = []string{
		"octocat", "mona", "hubot", "ada-l", "grace-h", "linus-t", "ken-t",
		"rob-p", "barbara-l", "margaret-h", "dennis-r", "frances-a",
	}
	names = []string{
		"The Octocat", "Mona Lisa", "Hubot", "Ada Lovelace", "Grace Hopper",
		"Linus Torvalds", "Ken Thompson", "Rob Pike", "Barbara Liskov",
		"Margaret Hamilton", "Dennis Ritchie", "Frances Allen",
	}
	locations = []string{"Helsinki", "Berlin", "San Francisco", "Tokyo", "Nairobi", "São Paulo", ""}
	companies = []string{"@acme", "@initech", "@globex", "", ""}

	owners    = []string{"acme", "opensource-labs", "cloud-native", "devtools"}
	repoNames = []string{"dashboard", "agent-runtime", "metrics-kit", "workflow-engine", "docs"}
	languages = []string{"Go", "TypeScript", "Rust", "Python"}
	topics    = []string{"automation", "community", "analytics", "ai", "workflows", "cli"}

	issueTitles = []string{
		"Crash when config file is missing",
		"Add dark mode to dashboard",
		"Docs: clarify install steps",
		"Flaky test in CI",
		"Support custom agent types",
		"Improve error message on timeout",
	}
	issueLabels = []string{"bug", "enhancement", "documentation", "good first issue", "help wanted"}
	prTitles    = []string{
		"Fix nil pointer in loader",
		"Add retry to notifier",
		"Refactor event bus",
		"Bump dependencies",
		"Add contributor guide",
	}
)

// Generator produces random records. It is safe for concurrent use.
type Generator struct {
	mu  deadlock.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New returns a Generator with a deterministic sequence for seed.
func New(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// NewRandom returns a Generator seeded from the runtime's random source.
func NewRandom() *Generator {
	return New(rand.Uint64())
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) pick(from []string) string {
	return from[g.intn(len(from))]
}

// between returns an int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.intn(hi-lo+1)
}

// Duration returns a uniformly distributed duration in [min, max].
func (g *Generator) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + time.Duration(g.rng.Int64N(int64(max-min)+1))
}

// Contributor returns a random contributor. About one in three is a
// first-time contributor.
func (g *Generator) Contributor() api.ContributorInfo {
	i := g.intn(len(logins))
	first := g.intn(3) == 0
	contributions := g.between(2, 250)
	if first {
		contributions = 1
	}
	return api.ContributorInfo{
		Login:             logins[i],
		Name:              names[i],
		AvatarURL:         fmt.Sprintf("https://avatars.githubusercontent.com/%s", logins[i]),
		Contributions:     contributions,
		FirstContribution: first,
		JoinedAt:          g.now().AddDate(0, 0, -g.between(1, 2000)),
		Location:          g.pick(locations),
		Company:           g.pick(companies),
	}
}

// Repository returns a random repository.
func (g *Generator) Repository() api.RepositoryInfo {
	owner, name := g.pick(owners), g.pick(repoNames)
	t := []string{g.pick(topics), g.pick(topics)}
	if t[0] == t[1] {
		t = t[:1]
	}
	return api.RepositoryInfo{
		Owner:       owner,
		Name:        name,
		FullName:    owner + "/" + name,
		Description: fmt.Sprintf("The %s project", strings.ReplaceAll(name, "-", " ")),
		Language:    g.pick(languages),
		Stars:       g.between(10, 50000),
		Forks:       g.between(0, 5000),
		OpenIssues:  g.between(0, 300),
		Topics:      t,
	}
}

// Issues returns n random issues authored by contributors from the pool.
func (g *Generator) Issues(n int) []api.Issue {
	out := make([]api.Issue, 0, n)
	for range n {
		state := "open"
		if g.intn(4) == 0 {
			state = "closed"
		}
		out = append(out, api.Issue{
			Number:    g.between(1, 5000),
			Title:     g.pick(issueTitles),
			Author:    g.pick(logins),
			Labels:    []string{g.pick(issueLabels)},
			State:     state,
			CreatedAt: g.now().Add(-time.Duration(g.between(1, 720)) * time.Hour),
		})
	}
	return out
}

// PullRequests returns n random pull requests authored by contributors
// from the pool.
func (g *Generator) PullRequests(n int) []api.PullRequest {
	states := []string{"open", "merged", "closed"}
	out := make([]api.PullRequest, 0, n)
	for range n {
		out = append(out, api.PullRequest{
			Number:       g.between(1, 5000),
			Title:        g.pick(prTitles),
			Author:       g.pick(logins),
			State:        g.pick(states),
			Additions:    g.between(1, 800),
			Deletions:    g.between(0, 400),
			ChangedFiles: g.between(1, 30),
			CreatedAt:    g.now().Add(-time.Duration(g.between(1, 720)) * time.Hour),
		})
	}
	return out
}

// ExecutionContext builds the subject of an execution. Nil arguments are
// synthesized; the context always carries 3 issues and 2 pull requests.
func (g *Generator) ExecutionContext(c *api.ContributorInfo, r *api.RepositoryInfo) api.ExecutionContext {
	source := "provided"
	var contributor api.ContributorInfo
	if c != nil {
		contributor = *c
	} else {
		contributor = g.Contributor()
		source = "generated"
	}
	var repo api.RepositoryInfo
	if r != nil {
		repo = *r
		repo.Topics = append([]string(nil), r.Topics...)
	} else {
		repo = g.Repository()
		source = "generated"
	}

	return api.ExecutionContext{
		Contributor:  contributor,
		Repository:   repo,
		Issues:       g.Issues(3),
		PullRequests: g.PullRequests(2),
		Metadata:     map[string]string{"source": source},
	}
}
