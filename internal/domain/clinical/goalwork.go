package clinical

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// WorkState tracks in-session progress against one assigned goal.
type WorkState struct {
	WorkedOn         bool   `json:"worked_on"`
	Narrative        string `json:"narrative,omitempty"`
	ProgressBefore   int    `json:"progress_before"`
	ProgressAfter    int    `json:"progress_after"`
	TimeSpentMinutes *int   `json:"time_spent_minutes,omitempty"`
}

// GoalWorkItem is the persisted shape of work done on a goal during one
// encounter, keyed by goal assignment.
type GoalWorkItem struct {
	GoalAssignmentID uuid.UUID `json:"goal_assignment_id"`
	Narrative        string    `json:"narrative,omitempty"`
	ProgressBefore   int       `json:"progress_before"`
	ProgressAfter    int       `json:"progress_after"`
	TimeSpentMinutes *int      `json:"time_spent_minutes,omitempty"`
}

// CollectGoalWork maps the session's per-goal work state to persisted rows.
// Goals never marked worked-on contribute nothing. Progress values must be
// within 0-100.
func CollectGoalWork(work map[uuid.UUID]WorkState) ([]GoalWorkItem, error) {
	items := make([]GoalWorkItem, 0, len(work))
	for goalID, st := range work {
		if !st.WorkedOn {
			continue
		}
		if st.ProgressBefore < 0 || st.ProgressBefore > 100 {
			return nil, fmt.Errorf("goal %s: progress before %d out of range", goalID, st.ProgressBefore)
		}
		if st.ProgressAfter < 0 || st.ProgressAfter > 100 {
			return nil, fmt.Errorf("goal %s: progress after %d out of range", goalID, st.ProgressAfter)
		}
		items = append(items, GoalWorkItem{
			GoalAssignmentID: goalID,
			Narrative:        st.Narrative,
			ProgressBefore:   st.ProgressBefore,
			ProgressAfter:    st.ProgressAfter,
			TimeSpentMinutes: st.TimeSpentMinutes,
		})
	}
	// Map iteration order is random; keep output stable for persistence and tests.
	sort.Slice(items, func(i, j int) bool {
		return items[i].GoalAssignmentID.String() < items[j].GoalAssignmentID.String()
	})
	return items, nil
}

// SeedWorkState builds the initial per-goal state for a session from the
// goals assigned to the case, defaulting progress-before (and after, until
// edited) to each goal's last known progress.
func SeedWorkState(goals []AssignedGoal) map[uuid.UUID]WorkState {
	out := make(map[uuid.UUID]WorkState, len(goals))
	for _, g := range goals {
		out[g.ID] = WorkState{
			ProgressBefore: g.CurrentProgress,
			ProgressAfter:  g.CurrentProgress,
		}
	}
	return out
}

// AssignedGoal is a treatment goal assigned to a case, as loaded at session
// open.
type AssignedGoal struct {
	ID              uuid.UUID `json:"id"`
	Description     string    `json:"description"`
	CurrentProgress int       `json:"current_progress"`
}
