package jobs

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"videokit/internal/domain"
)

const defaultPromptLimit = 20

// PromptEntry is one previously used prompt.
type PromptEntry struct {
	Prompt   string    `json:"prompt"`
	LastUsed time.Time `json:"lastUsed"`
}

// Filter narrows the list to one status; "", "all" and unknown filters keep everything.
func (c *Controller) Filter(status string) []*domain.Job {
	all := c.List()
	s := domain.JobStatus(strings.ToLower(strings.TrimSpace(status)))
	if !s.Valid() {
		return all
	}
	out := all[:0]
	for _, j := range all {
		if j.Status == s {
			out = append(out, j)
		}
	}
	return out
}

// SearchPrompts returns distinct prompts containing query, compared case-insensitively, newest
// first and at most limit entries.
func (c *Controller) SearchPrompts(query string, limit int) []PromptEntry {
	if limit <= 0 {
		limit = defaultPromptLimit
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))

	jobs := c.List()
	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	seen := make(map[string]struct{}, len(jobs))
	out := make([]PromptEntry, 0, limit)
	for _, j := range jobs {
		prompt := strings.TrimSpace(j.Prompt)
		if prompt == "" {
			continue
		}
		key := fold.String(prompt)
		if _, dup := seen[key]; dup {
			continue
		}
		if needle != "" && !strings.Contains(key, needle) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, PromptEntry{Prompt: prompt, LastUsed: j.CreatedAt})
		if len(out) == limit {
			break
		}
	}
	return out
}
