package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/fentz26/studyplan/internal/models"
)

const systemPrompt = `You are an academic planning agent. You turn a syllabus and time constraints into a
realistic multi-week study schedule and you adjust existing schedules when work is missed.

Return ONLY a JSON object, no markdown fences and no commentary, matching this schema:
` + responseSchema

// responseSchema describes the JSON the model must return.
const responseSchema = `{
  "options": [
    {
      "name": "string",
      "strategy": "string (e.g. balanced, weekend-heavy, front-loaded)",
      "plan": {
        "plan_horizon_weeks": "integer",
        "backlog_hours": "number",
        "rationale": "string",
        "study_plan": [
          {
            "week_start": "YYYY-MM-DD",
            "goals": ["string"],
            "sessions": [
              {
                "date": "YYYY-MM-DD",
                "time_block": "string (morning | afternoon | evening)",
                "start_time": "HH:MM (optional)",
                "end_time": "HH:MM (optional)",
                "planned_minutes": "integer",
                "tasks": [
                  {
                    "task_id": "string, unique across the whole plan",
                    "title": "string",
                    "course": "string",
                    "type": "reading | problem_set | project | review | practice_exam | admin",
                    "deliverable": "string (optional)",
                    "est_minutes": "integer",
                    "difficulty_1to5": "integer 1-5",
                    "priority_1to5": "integer 1-5",
                    "deadline": "YYYY-MM-DD or null",
                    "status": "planned | completed | missed | rescheduled | dropped",
                    "depends_on": ["task_id"],
                    "reasoning": "string (optional)"
                  }
                ]
              }
            ]
          }
        ]
      }
    }
  ],
  "health": {"status": "on_track | at_risk | overloaded", "notes": ["string"]},
  "assumptions": ["string"],
  "next_actions": ["string"],
  "rationale": "string"
}`

const defaultGenerateTemplate = `Build a study plan for the syllabus below.

SYLLABUS:
{{.Constraints.Syllabus}}

CONSTRAINTS:
- Start date: {{.Constraints.StartDate}}
- Final deadline: {{.Constraints.DeadlineDate}}
- Study capacity: {{.Constraints.HoursPerWeek}} hours per week
{{- if .Constraints.Preferences}}
- Availability and preferences: {{.Constraints.Preferences}}
{{- end}}

RULES:
1. The first session of the first week must be on {{.Constraints.StartDate}}; every week_start is 7 days after the previous one.
2. Do not schedule anything after {{.Constraints.DeadlineDate}}.
3. Keep the planned minutes of each week within the weekly capacity.
4. Put difficult topics early and leave review and practice exams before the deadline.
5. Every task_id must be unique across the whole plan.
6. Return two to three options with different strategies.
`

const defaultRebalanceTemplate = `Rebalance the existing study plan below.

TODAY: {{.Today}}

CURRENT STATE:
- Completed tasks: {{.Completed}}
- Missed tasks: {{.Missed}}
- Remaining tasks: {{.Remaining}}
- Study capacity: {{.Constraints.HoursPerWeek}} hours per week
- Final deadline: {{.Constraints.DeadlineDate}}

SYLLABUS CONTEXT:
{{.Constraints.Syllabus}}

OBJECTIVE:
1. Move missed tasks into future sessions and mark them "rescheduled".
2. If future weeks are overloaded, keep high-priority work and consolidate minor items.
3. Keep every existing task_id for tasks you keep; new tasks need new unique ids.
4. Explain what you changed in "rationale".

PLAN:
{{.PlanJSON}}
`

// GeneratePromptData is the template input for a new plan.
type GeneratePromptData struct {
	Constraints models.PlanConstraints
}

// RebalancePromptData is the template input for a rebalance.
type RebalancePromptData struct {
	Constraints models.PlanConstraints
	Today       string
	Completed   int
	Missed      int
	Remaining   int
	PlanJSON    string
}

// Prompts renders the instruction text sent to a model.
type Prompts struct {
	generate  *template.Template
	rebalance *template.Template
}

// DefaultPrompts returns the built-in prompt templates.
func DefaultPrompts() *Prompts {
	return &Prompts{
		generate:  template.Must(template.New("generate").Parse(defaultGenerateTemplate)),
		rebalance: template.Must(template.New("rebalance").Parse(defaultRebalanceTemplate)),
	}
}

// LoadPrompts returns the built-in templates, overridden by generate.tmpl and
// rebalance.tmpl from dir when those files exist.
func LoadPrompts(dir string) (*Prompts, error) {
	p := DefaultPrompts()
	if dir == "" {
		return p, nil
	}
	for name, dst := range map[string]**template.Template{
		"generate.tmpl":  &p.generate,
		"rebalance.tmpl": &p.rebalance,
	} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = tmpl
	}
	return p, nil
}

// System returns the system instruction including the response schema.
func (p *Prompts) System() string {
	return systemPrompt
}

// RenderGenerate renders the prompt for a new plan.
func (p *Prompts) RenderGenerate(c models.PlanConstraints) (string, error) {
	return render(p.generate, GeneratePromptData{Constraints: c})
}

// RenderRebalance renders the prompt for a rebalance of doc.
func (p *Prompts) RenderRebalance(doc models.PlanDocument, c models.PlanConstraints, today string) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	in := RebalancePromptData{Constraints: c, Today: today, PlanJSON: string(data)}
	for _, week := range doc.Weeks {
		for _, session := range week.Sessions {
			for _, task := range session.Tasks {
				switch task.Status {
				case models.TaskStatusCompleted:
					in.Completed++
				case models.TaskStatusMissed:
					in.Missed++
				default:
					in.Remaining++
				}
			}
		}
	}
	return render(p.rebalance, in)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
