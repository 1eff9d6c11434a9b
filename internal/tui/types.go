package tui

import (
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/planstate"
)

// TaskRow is one task of the current week, flattened for the list view.
type TaskRow struct {
	SessionIndex int
	Date         string
	TimeBlock    string
	Task         models.Task
}

// weekRows flattens the snapshot's current week in session order.
func weekRows(snap *planstate.Snapshot) []TaskRow {
	if snap == nil || snap.CurrentWeek == nil {
		return nil
	}
	var rows []TaskRow
	for s, session := range snap.CurrentWeek.Sessions {
		for _, task := range session.Tasks {
			rows = append(rows, TaskRow{
				SessionIndex: s,
				Date:         session.Date,
				TimeBlock:    session.TimeBlock,
				Task:         task,
			})
		}
	}
	return rows
}

// Message types

type planLoadedMsg struct {
	snap    *planstate.Snapshot
	message string
}

type logsLoadedMsg struct {
	entries []models.RebalanceLog
}

type daemonStatusMsg struct {
	online bool
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tickMsg struct{}
