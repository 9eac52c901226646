// Package trends builds the educational-context digest injected into the
// interviewer's prompts. The digest combines recent institutional developments
// with industry trends for the student's program so answers sound informed
// rather than generic.
//
// Digests are cached per university/program pair and refreshed after a
// configurable interval (24 h by default). The curated trend lists stand in
// for live feeds; swap in a news source by replacing the two generator
// functions.
package trends

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultRefreshInterval = 24 * time.Hour

// digest is a cached context entry for one university/program pair.
type digest struct {
	text      string
	fetchedAt time.Time
}

// Service produces and caches educational-context digests.
// It is safe for concurrent use.
type Service struct {
	refreshInterval time.Duration
	now             func() time.Time

	mu    sync.Mutex
	cache map[string]digest
}

// Option is a functional option for configuring a trends Service.
type Option func(*Service)

// WithRefreshInterval overrides how long a digest is reused before being
// rebuilt. Non-positive values are ignored.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithClock overrides the time source. Mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService returns a ready-to-use trends Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
		cache:           make(map[string]digest),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Digest returns the educational-context digest for the given university and
// program, building and caching it on first use.
func (s *Service) Digest(university, program string) string {
	key := university + "\x00" + program

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.cache[key]; ok && s.now().Sub(d.fetchedAt) < s.refreshInterval {
		return d.text
	}

	text := formatDigest(university, institutionalDevelopments(university, program), industryTrends(program))
	s.cache[key] = digest{text: text, fetchedAt: s.now()}
	return text
}

// ClearCache drops all cached digests, forcing a rebuild on next use.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]digest)
}

// formatDigest renders the digest in the prompt-ready layout.
func formatDigest(university string, developments, trends []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Educational Context for %s:\n\n", university)
	b.WriteString("Recent Developments:\n")
	for _, d := range developments {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteString("\nIndustry Trends:\n")
	for _, t := range trends {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteByte('\n')
	}
	b.WriteString("\nUse this context to provide informed, relevant answers to the student's questions.")
	return b.String()
}

// institutionalDevelopments returns recent developments for the university,
// extended with program-specific items.
func institutionalDevelopments(university, program string) []string {
	developments := []string{
		fmt.Sprintf("%s has been focusing on interdisciplinary learning and hands-on projects", university),
		"Recent emphasis on AI and machine learning integration across programs",
		"Strong focus on sustainability and ethical technology development",
		"Increased investment in student research opportunities and mentorship",
		"New partnerships with industry leaders for internship programs",
	}

	switch {
	case isTechProgram(program):
		developments = append(developments,
			"Growing demand for software engineers with AI/ML expertise",
			"Emphasis on full-stack development and cloud computing skills",
			"Cybersecurity has become a critical focus area",
		)
	case isBusinessProgram(program):
		developments = append(developments,
			"Digital transformation is reshaping business education",
			"Entrepreneurship and innovation programs are expanding",
			"Data analytics skills are increasingly important for business graduates",
		)
	}
	return developments
}

// industryTrends returns program-relevant industry trends.
func industryTrends(program string) []string {
	general := []string{
		"Remote and hybrid work models are reshaping career expectations",
		"Lifelong learning and continuous skill development are essential",
		"Cross-functional collaboration skills are highly valued",
	}

	switch {
	case isTechProgram(program):
		return append(general,
			"AI and machine learning are transforming every industry",
			"Open source contribution is becoming a key differentiator",
			"Climate tech and sustainable technology are growing rapidly",
		)
	case isBusinessProgram(program):
		return append(general,
			"ESG (Environmental, Social, Governance) is a top priority",
			"Digital-first business models are the new standard",
			"Data-driven decision making is critical for success",
		)
	}
	return general
}

func isTechProgram(program string) bool {
	p := strings.ToLower(program)
	return strings.Contains(p, "computer science") || strings.Contains(p, "engineering")
}

func isBusinessProgram(program string) bool {
	return strings.Contains(strings.ToLower(program), "business")
}
