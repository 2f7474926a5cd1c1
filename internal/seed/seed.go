// Package seed generates the demo dataset: jobs, candidates with plausible
// timelines, and assessments with conditional questions.
package seed

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"

	"talentflow/internal/assessment"
	"talentflow/internal/database"
	"talentflow/internal/pipeline"
)

// Counts sizes the generated dataset.
type Counts struct {
	Jobs        int
	Candidates  int
	Assessments int
}

// Dataset is a batch of records keyed by local ids starting at 1. The store
// remaps those ids to the ones the database assigns.
type Dataset struct {
	Jobs        []database.Job
	Candidates  []database.Candidate
	Timeline    []database.TimelineEntry
	Assessments []database.Assessment
}

var (
	skills   = []string{"React", "Node.js", "Tailwind CSS", "SQL", "TypeScript", "Cloud"}
	sections = []string{"Technical", "Aptitude", "Behavioral", "Final"}
	yesNo    = []string{"Yes", "No", "Maybe"}
)

const day = 24 * time.Hour

// Generate builds a dataset from rng. The same seed yields the same data for a fixed now.
func Generate(rng *rand.Rand, c Counts, now time.Time) Dataset {
	g := generator{rng: rng, now: now.UTC()}
	var ds Dataset

	for i := 1; i <= c.Jobs; i++ {
		ds.Jobs = append(ds.Jobs, g.job(uint(i), i))
	}
	for i := 1; i <= c.Candidates; i++ {
		cand := g.candidate(uint(i), c.Jobs)
		ds.Candidates = append(ds.Candidates, cand)
		ds.Timeline = append(ds.Timeline, g.timeline(cand)...)
	}
	for i := 1; i <= c.Assessments && i <= c.Jobs; i++ {
		ds.Assessments = append(ds.Assessments, g.assessment(uint(i)))
	}
	return ds
}

type generator struct {
	rng *rand.Rand
	now time.Time
}

// between returns an int in [min, max].
func (g generator) between(min, max int) int {
	return min + g.rng.Intn(max-min+1)
}

func (g generator) pick(items []string) string {
	return items[g.rng.Intn(len(items))]
}

func (g generator) job(id uint, order int) database.Job {
	title := fmt.Sprintf("Software Engineer L%d - %s-End", g.between(1, 5), []string{"Front", "Back", "Full"}[g.rng.Intn(3)])

	status := string(pipeline.JobActive)
	if g.rng.Intn(2) == 1 {
		status = string(pipeline.JobArchived)
	}

	seen := map[string]bool{}
	var tags []database.JobTag
	for n := g.between(1, 4); n > 0; n-- {
		tag := g.pick(skills)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, database.JobTag{Tag: tag})
	}

	created := g.now.Add(-time.Duration(g.between(1, 90)) * day)
	return database.Job{
		ID:        id,
		Title:     title,
		Slug:      fmt.Sprintf("%s-%d", Slugify(title), id),
		Status:    status,
		SortOrder: order,
		Tags:      tags,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func (g generator) candidate(id uint, jobs int) database.Candidate {
	var jobID uint
	if jobs > 0 {
		jobID = uint(g.between(1, jobs))
	}
	return database.Candidate{
		ID:    id,
		Name:  fmt.Sprintf("Candidate %d", id),
		Email: fmt.Sprintf("candidate%d@talentflow.com", id),
		Stage: string(pipeline.Stages[g.rng.Intn(len(pipeline.Stages))]),
		JobID: jobID,
	}
}

// timeline walks the linear pipeline from applied toward the candidate's
// stage, one entry per hop, starting at a random point in the last 90 days.
func (g generator) timeline(c database.Candidate) []database.TimelineEntry {
	target := pipeline.Stage(c.Stage)
	current := pipeline.StageApplied
	at := g.now.Add(-time.Duration(g.rng.Int63n(int64(90 * day))))

	entries := []database.TimelineEntry{{
		CandidateID: c.ID,
		Type:        database.TimelineStageChange,
		Details:     fmt.Sprintf("Application submitted. Stage: %s", current),
		Timestamp:   at,
	}}

	for current != target {
		var options []pipeline.Stage
		for _, next := range pipeline.Next(current) {
			if next.Index() <= target.Index() {
				options = append(options, next)
			}
		}
		if len(options) == 0 {
			// dead end on the way to a terminal stage: jump straight to it
			options = []pipeline.Stage{target}
		}
		current = options[g.rng.Intn(len(options))]
		at = at.Add(time.Duration(g.between(1, 10)) * day)
		entries = append(entries, database.TimelineEntry{
			CandidateID: c.ID,
			Type:        database.TimelineStageChange,
			Details:     fmt.Sprintf("Moved to %s", current),
			Timestamp:   at,
		})
	}
	return entries
}

func (g generator) assessment(jobID uint) database.Assessment {
	doc := g.document()
	raw, _ := json.Marshal(doc.Sections)
	return database.Assessment{
		JobID:     jobID,
		Sections:  datatypes.JSON(raw),
		UpdatedAt: g.now,
	}
}

// document builds 2-4 sections of 8-12 questions. The first question of each
// section is a Yes/No/Maybe choice and every third question after it is only
// shown when that answer is "Yes".
func (g generator) document() assessment.Document {
	var doc assessment.Document
	sectionCount := g.between(2, 4)
	for s := 1; s <= sectionCount; s++ {
		title := "Misc"
		if s <= len(sections) {
			title = sections[s-1]
		}
		sec := assessment.Section{
			ID:    fmt.Sprintf("sec-%d", s),
			Title: fmt.Sprintf("Section %d: %s", s, title),
		}
		first := fmt.Sprintf("q-%d-1", s)

		questionCount := g.between(8, 12)
		for q := 1; q <= questionCount; q++ {
			typ := assessment.QuestionTypes[g.rng.Intn(len(assessment.QuestionTypes))]
			if q == 1 {
				typ = assessment.SingleChoice
			}
			question := assessment.Question{
				ID:       fmt.Sprintf("q-%d-%d", s, q),
				Type:     typ,
				Text:     fmt.Sprintf("Q%d: How would you approach a %s problem in a %s format?", q, g.pick(skills), typ),
				Required: true,
			}
			switch typ {
			case assessment.SingleChoice, assessment.MultiChoice:
				question.Options = append([]string(nil), yesNo...)
			case assessment.Numeric:
				question.Range = &assessment.Range{Min: 1, Max: 10}
			case assessment.ShortText:
				question.MaxLength = 200
			case assessment.LongText:
				question.MaxLength = 2000
			}
			if q > 1 && (q-1)%3 == 0 {
				question.Conditional = &assessment.Conditional{TargetQuestionID: first, TargetValue: "Yes"}
			}
			sec.Questions = append(sec.Questions, question)
		}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc
}

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^\w-]+`)
)

// Slugify lowercases text, turns whitespace runs into dashes and drops
// anything that is not a word character or dash.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugSpaces.ReplaceAllString(s, "-")
	return slugInvalid.ReplaceAllString(s, "")
}
