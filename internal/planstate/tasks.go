package planstate

import (
	"context"
	"log"

	"github.com/fentz26/studyplan/internal/generator"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
)

// SetStatus changes a task's status. It reports false when no task has that
// id. Marking a task missed with auto-rebalance enabled starts one rebalance
// against the updated plan; the generator call finishes in the background.
func (s *Store) SetStatus(ctx context.Context, taskID string, status models.TaskStatus) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}

	s.mu.Lock()
	doc, applied := plan.SetStatus(s.documentLocked(), taskID, status)
	if !applied || s.response == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.setDocumentLocked(doc)
	s.record("task.status", map[string]string{"task_id": taskID, "status": string(status)}, "success", taskID, "")
	s.persistLocked(ctx)

	var job *rebalanceJob
	if status == models.TaskStatusMissed && s.opts.AutoRebalance {
		var err error
		job, err = s.beginRebalanceLocked(TriggerMissed)
		if err != nil {
			log.Printf("Auto-rebalance skipped for %s: %v", taskID, err)
		} else {
			s.wg.Add(1)
		}
	}
	s.mu.Unlock()

	if job != nil {
		go func() {
			defer s.wg.Done()
			if err := s.runRebalance(s.opts.BaseContext, job); err != nil {
				log.Printf("Auto-rebalance failed: %v", err)
			}
		}()
	}
	return true, nil
}

// UpdateTask replaces the task whose id matches task.TaskID.
func (s *Store) UpdateTask(ctx context.Context, task models.Task) bool {
	generator.NormalizeTask(&task)

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, applied := plan.UpdateTask(s.documentLocked(), task)
	if !applied || s.response == nil {
		return false
	}
	s.setDocumentLocked(doc)
	s.record("task.update", task, "success", task.TaskID, "")
	s.persistLocked(ctx)
	return true
}

// DeleteTask removes a task. Its session is kept even when it becomes empty.
func (s *Store) DeleteTask(ctx context.Context, taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, applied := plan.DeleteTask(s.documentLocked(), taskID)
	if !applied || s.response == nil {
		return false
	}
	s.setDocumentLocked(doc)
	s.record("task.delete", map[string]string{"task_id": taskID}, "success", taskID, "")
	s.persistLocked(ctx)
	return true
}

// AddTask appends task to the addressed session and returns it with its
// assigned id. Out-of-range indices and duplicate ids leave the plan
// unchanged and report false.
func (s *Store) AddTask(ctx context.Context, weekIndex, sessionIndex int, task models.Task) (models.Task, bool) {
	if task.TaskID == "" {
		task.TaskID = "manual-" + s.opts.NewID()
	}
	generator.NormalizeTask(&task)

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, applied := plan.AddTask(s.documentLocked(), weekIndex, sessionIndex, task)
	if !applied || s.response == nil {
		return task, false
	}
	s.setDocumentLocked(doc)
	s.record("task.add", task, "success", task.TaskID, "")
	s.persistLocked(ctx)
	return task, true
}
