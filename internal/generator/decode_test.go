package generator

import (
	"testing"

	"github.com/fentz26/studyplan/internal/models"
)

const singleDocument = `{
  "plan_horizon_weeks": 1,
  "rationale": "front-load proofs",
  "assumptions": ["10 hours per week"],
  "health": {"status": "on_track"},
  "study_plan": [
    {"week_start": "2025-01-06", "sessions": [
      {"date": "2025-01-06", "time_block": "evening", "tasks": [
        {"task_id": "a", "title": "Read ch.1", "type": "reading", "est_minutes": 60, "difficulty_1to5": 9, "priority_1to5": 0}
      ]},
      {"date": "2025-01-08", "time_block": "evening"}
    ]},
    {"week_start": "2025-01-13"}
  ]
}`

func TestLocatePlan(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"clean JSON", `{"options":[]}`, `{"options":[]}`, false},
		{"leading text", `Here is the plan: {"options":[]}`, `{"options":[]}`, false},
		{"trailing text", `{"options":[]} Good luck!`, `{"options":[]}`, false},
		{"json fence", "```json\n{\"options\":[]}\n```", `{"options":[]}`, false},
		{"plain fence", "```\n{\"options\":[]}\n```", `{"options":[]}`, false},
		{"cli wrapper", `{"type":"result","result":"` + "```json\\n{\\\"options\\\":[]}\\n```" + `","is_error":false}`, `{"options":[]}`, false},
		{"cli error", `{"type":"result","result":"rate limited","is_error":true}`, "", true},
		{"truncated", `{"options":[`, "", true},
		{"no JSON", `I cannot help with that.`, "", true},
		{"braces in prose", `Note {draft} first, then {"options":[]}`, `{"options":[]}`, false},
		{"second fence holds the plan", "```json\n{\"note\":1}\n```\nand\n```json\n{\"study_plan\":[]}\n```", `{"study_plan":[]}`, false},
		{"object without plan keys", `Result: {"tasks":[]}`, `{"tasks":[]}`, false},
		{"array only", `[1,2]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := locatePlan([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("locatePlan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("locatePlan() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode_SingleDocumentIsWrapped(t *testing.T) {
	resp, err := Decode([]byte("```json\n" + singleDocument + "\n```"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(resp.Options) != 1 || resp.Options[0].Name != "default" {
		t.Fatalf("Expected one default option, got %+v", resp.Options)
	}
	if resp.Rationale != "front-load proofs" {
		t.Errorf("Expected envelope rationale lifted from document, got %q", resp.Rationale)
	}
	if resp.Health.Status != models.HealthOnTrack {
		t.Errorf("Expected health lifted from document, got %q", resp.Health.Status)
	}
}

func TestDecode_NormalizesShape(t *testing.T) {
	resp, err := Decode([]byte(singleDocument))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	doc := resp.Options[0].Plan

	task := doc.Weeks[0].Sessions[0].Tasks[0]
	if task.Status != models.TaskStatusPlanned {
		t.Errorf("Expected missing status to default to planned, got %q", task.Status)
	}
	if task.Difficulty != 5 || task.Priority != 1 {
		t.Errorf("Expected ratings clamped to 5/1, got %d/%d", task.Difficulty, task.Priority)
	}
	if task.DependsOn == nil {
		t.Error("Expected depends_on to be an empty slice")
	}
	if doc.Weeks[0].Sessions[1].Tasks == nil {
		t.Error("Expected missing tasks to become an empty slice")
	}
	if doc.Weeks[1].Sessions == nil {
		t.Error("Expected missing sessions to become an empty slice")
	}
	if resp.NextActions == nil {
		t.Error("Expected next_actions to be an empty slice")
	}
}

func TestDecode_MultiVariant(t *testing.T) {
	raw := `{"options":[
		{"name":"balanced","plan":{"study_plan":[]}},
		{"strategy":"weekend-heavy","plan":{"study_plan":[{"week_start":"2025-01-06","sessions":[{"date":"2025-01-11","tasks":[{"task_id":"x","type":"lecture","status":"pending"}]}]}]}}
	],"health":{"status":"at_risk"},"next_actions":["Buy the textbook"]}`

	resp, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(resp.Options) != 2 {
		t.Fatalf("Expected 2 options, got %d", len(resp.Options))
	}
	if resp.Options[1].Name != "option-2" {
		t.Errorf("Expected generated option name, got %q", resp.Options[1].Name)
	}
	task := resp.Options[1].Plan.Weeks[0].Sessions[0].Tasks[0]
	if task.Type != models.TaskTypeAdmin {
		t.Errorf("Expected unknown type coerced to admin, got %q", task.Type)
	}
	if task.Status != models.TaskStatusPlanned {
		t.Errorf("Expected unknown status coerced to planned, got %q", task.Status)
	}
	if resp.Health.Status != models.HealthAtRisk {
		t.Errorf("Expected at_risk, got %q", resp.Health.Status)
	}
}

func TestDecode_Rejects(t *testing.T) {
	inputs := map[string]string{
		"no options":    `{"options":[]}`,
		"unknown shape": `{"tasks":[]}`,
		"wrong types":   `{"options":[{"plan":{"study_plan":"soon"}}]}`,
		"not json":      `sorry`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(in)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestFencedBlocks(t *testing.T) {
	got := fencedBlocks("intro\n```json\n{\"a\":1}\n```\nmiddle\n```\n{\"b\":2}\n```")
	want := []string{`{"a":1}`, `{"b":2}`}
	if len(got) != len(want) {
		t.Fatalf("Expected %d blocks, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d = %q, want %q", i, got[i], want[i])
		}
	}
	if blocks := fencedBlocks(`{"a":1}`); len(blocks) != 0 {
		t.Errorf("Expected no blocks, got %q", blocks)
	}
}
