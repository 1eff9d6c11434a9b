package planstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fentz26/studyplan/internal/models"
)

// Record keys written to the mirror.
const (
	KeyPlanResponse    = "plan_response"
	KeySelectedVariant = "selected_variant"
	KeyConstraints     = "constraints"
	KeyRebalanceLog    = "rebalance_log"
)

// Keys lists every record the store writes.
var Keys = []string{KeyPlanResponse, KeySelectedVariant, KeyConstraints, KeyRebalanceLog}

// Mirror is a passive key/value copy of the store state. Values are plain
// JSON text. Read omits keys that are not present.
type Mirror interface {
	Read(ctx context.Context, keys ...string) (map[string]string, error)
	Write(ctx context.Context, records map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Recorder writes an audit entry for a state-mutating action.
type Recorder interface {
	Record(action string, inputs interface{}, outcome, taskID, details string) (*models.PDREntry, error)
}

type persisted struct {
	response    models.PlanResponse
	selected    int
	constraints models.PlanConstraints
	log         []models.RebalanceLog
}

func encodeRecords(p persisted) (map[string]string, error) {
	resp, err := json.Marshal(p.response)
	if err != nil {
		return nil, fmt.Errorf("encode plan response: %w", err)
	}
	constraints, err := json.Marshal(p.constraints)
	if err != nil {
		return nil, fmt.Errorf("encode constraints: %w", err)
	}
	log := p.log
	if log == nil {
		log = []models.RebalanceLog{}
	}
	logData, err := json.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("encode rebalance log: %w", err)
	}
	return map[string]string{
		KeyPlanResponse:    string(resp),
		KeySelectedVariant: strconv.Itoa(p.selected),
		KeyConstraints:     string(constraints),
		KeyRebalanceLog:    string(logData),
	}, nil
}

// decodeRecords returns false when any of the three required records is
// missing. The rebalance log is optional.
func decodeRecords(records map[string]string) (persisted, bool, error) {
	var p persisted
	respData, ok1 := records[KeyPlanResponse]
	selData, ok2 := records[KeySelectedVariant]
	consData, ok3 := records[KeyConstraints]
	if !ok1 || !ok2 || !ok3 {
		return p, false, nil
	}

	if err := json.Unmarshal([]byte(respData), &p.response); err != nil {
		return p, false, fmt.Errorf("decode plan response: %w", err)
	}
	selected, err := strconv.Atoi(selData)
	if err != nil {
		return p, false, fmt.Errorf("decode selected variant: %w", err)
	}
	p.selected = selected
	if err := json.Unmarshal([]byte(consData), &p.constraints); err != nil {
		return p, false, fmt.Errorf("decode constraints: %w", err)
	}
	if logData, ok := records[KeyRebalanceLog]; ok {
		if err := json.Unmarshal([]byte(logData), &p.log); err != nil {
			return p, false, fmt.Errorf("decode rebalance log: %w", err)
		}
	}
	return p, true, nil
}
