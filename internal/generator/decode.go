package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/tidwall/gjson"
)

// Decode extracts the JSON payload from raw model output and coerces it into
// a response envelope. Both the multi-variant form ({"options": [...]}) and a
// bare document ({"study_plan": [...]}) are accepted.
func Decode(raw []byte) (*models.PlanResponse, error) {
	data, err := locatePlan(raw)
	if err != nil {
		return nil, err
	}

	var resp models.PlanResponse
	switch {
	case gjson.GetBytes(data, "options").IsArray():
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse plan response: %w", err)
		}
	case gjson.GetBytes(data, "study_plan").Exists():
		var doc models.PlanDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse plan document: %w", err)
		}
		resp = models.PlanResponse{
			Options:     []models.PlanOption{{Name: "default", Plan: doc}},
			Health:      doc.Health,
			Assumptions: doc.Assumptions,
			NextActions: doc.NextActions,
			Rationale:   doc.Rationale,
		}
	default:
		return nil, errors.New("response has neither options nor study_plan")
	}

	if len(resp.Options) == 0 {
		return nil, errors.New("response contains no plan options")
	}
	Normalize(&resp)
	return &resp, nil
}

// Normalize coerces optional or out-of-range fields into the shape the rest of
// the system expects. It does not validate or repair the schedule itself.
func Normalize(resp *models.PlanResponse) {
	resp.Assumptions = nonNil(resp.Assumptions)
	resp.NextActions = nonNil(resp.NextActions)
	for i := range resp.Options {
		opt := &resp.Options[i]
		if opt.Name == "" {
			opt.Name = fmt.Sprintf("option-%d", i+1)
		}
		NormalizeDocument(&opt.Plan)
	}
}

// NormalizeDocument applies Normalize's rules to a single document.
func NormalizeDocument(doc *models.PlanDocument) {
	doc.Assumptions = nonNil(doc.Assumptions)
	doc.NextActions = nonNil(doc.NextActions)
	if doc.Weeks == nil {
		doc.Weeks = []models.Week{}
	}
	for w := range doc.Weeks {
		week := &doc.Weeks[w]
		week.Goals = nonNil(week.Goals)
		if week.Sessions == nil {
			week.Sessions = []models.Session{}
		}
		for s := range week.Sessions {
			session := &week.Sessions[s]
			if session.Tasks == nil {
				session.Tasks = []models.Task{}
			}
			for t := range session.Tasks {
				NormalizeTask(&session.Tasks[t])
			}
		}
	}
}

// NormalizeTask fills defaults on a single task.
func NormalizeTask(task *models.Task) {
	if !task.Status.Valid() {
		task.Status = models.TaskStatusPlanned
	}
	if !task.Type.Valid() {
		task.Type = models.TaskTypeAdmin
	}
	task.Difficulty = clampRating(task.Difficulty)
	task.Priority = clampRating(task.Priority)
	if task.EstMinutes < 0 {
		task.EstMinutes = 0
	}
	task.DependsOn = nonNil(task.DependsOn)
}

func clampRating(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// maxObjectStarts bounds how many "{" positions locatePlan tries.
const maxObjectStarts = 64

// locatePlan finds the plan object in raw model output. Candidates are tried
// in order: the whole text, each fenced block, then the spans from every "{"
// to the last "}". The first JSON object carrying options or study_plan wins;
// otherwise the first JSON object found is returned and Decode reports its
// shape.
func locatePlan(raw []byte) ([]byte, error) {
	text := strings.TrimSpace(string(raw))

	// Model CLIs run with --output-format json wrap the reply in a result
	// envelope.
	if env := gjson.Parse(text); env.IsObject() && env.Get("type").String() == "result" {
		result := env.Get("result")
		if env.Get("is_error").Bool() {
			return nil, errors.New("model returned an error: " + result.String())
		}
		text = strings.TrimSpace(result.String())
	}

	var fallback string
	for _, c := range candidates(text) {
		if !gjson.Valid(c) {
			continue
		}
		obj := gjson.Parse(c)
		if !obj.IsObject() {
			continue
		}
		if obj.Get("options").Exists() || obj.Get("study_plan").Exists() {
			return []byte(c), nil
		}
		if fallback == "" {
			fallback = c
		}
	}
	if fallback != "" {
		return []byte(fallback), nil
	}
	return nil, errors.New("no JSON object found in response")
}

func candidates(text string) []string {
	out := []string{text}
	out = append(out, fencedBlocks(text)...)

	end := strings.LastIndex(text, "}")
	for i, n := 0, 0; end > 0 && n < maxObjectStarts; n++ {
		j := strings.IndexByte(text[i:], '{')
		if j < 0 || i+j >= end {
			break
		}
		start := i + j
		out = append(out, text[start:end+1])
		i = start + 1
	}
	return out
}

// fencedBlocks returns the bodies of Markdown code fences, without the
// language tag line.
func fencedBlocks(text string) []string {
	parts := strings.Split(text, "```")
	var blocks []string
	for i := 1; i < len(parts); i += 2 {
		body := parts[i]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
			body = body[nl+1:]
		}
		blocks = append(blocks, strings.TrimSpace(body))
	}
	return blocks
}
