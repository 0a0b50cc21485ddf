package api

import (
	"maps"
	"slices"
	"time"
)

// ContributorInfo describes the person a workflow is about.
type ContributorInfo struct {
	Login             string    `json:"login"`
	Name              string    `json:"name"`
	AvatarURL         string    `json:"avatarUrl"`
	Contributions     int       `json:"contributions"`
	FirstContribution bool      `json:"firstContribution"`
	JoinedAt          time.Time `json:"joinedAt"`
	Location          string    `json:"location,omitempty"`
	Company           string    `json:"company,omitempty"`
}

// RepositoryInfo describes the repository a workflow acts on.
type RepositoryInfo struct {
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	FullName    string   `json:"fullName"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	OpenIssues  int      `json:"openIssues"`
	Topics      []string `json:"topics,omitempty"`
}

// Issue is a simulated repository issue.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Labels    []string  `json:"labels,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// PullRequest is a simulated pull request.
type PullRequest struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	State        string    `json:"state"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	ChangedFiles int       `json:"changedFiles"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ExecutionContext is the subject data an execution works with.
type ExecutionContext struct {
	Contributor  ContributorInfo   `json:"contributor"`
	Repository   RepositoryInfo    `json:"repository"`
	Issues       []Issue           `json:"issues,omitempty"`
	PullRequests []PullRequest     `json:"pullRequests,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the context.
func (c ExecutionContext) Clone() ExecutionContext {
	c.Repository.Topics = slices.Clone(c.Repository.Topics)
	issues := make([]Issue, len(c.Issues))
	for i, is := range c.Issues {
		is.Labels = slices.Clone(is.Labels)
		issues[i] = is
	}
	if c.Issues != nil {
		c.Issues = issues
	}
	c.PullRequests = slices.Clone(c.PullRequests)
	c.Metadata = maps.Clone(c.Metadata)
	return c
}
