package board

import "sprintdesk/internal/model"

// reorderWithinColumn moves taskID to position newIndex among the tasks of col.
//
// The column's tasks are written back into the slots that column already occupied in the full
// list, so tasks of other columns keep both their positions and their order. newIndex is the
// final position of the moved task and is clamped to the column bounds.
func reorderWithinColumn(tasks []model.Task, taskID model.ID, newIndex int, col model.Column) ([]model.Task, bool) {
	slots := make([]int, 0, len(tasks))
	from := -1
	for i := range tasks {
		if tasks[i].Status != col {
			continue
		}
		if tasks[i].ID == taskID {
			from = len(slots)
		}
		slots = append(slots, i)
	}
	if from < 0 {
		return tasks, false
	}

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(slots)-1 {
		newIndex = len(slots) - 1
	}
	if newIndex == from {
		return tasks, false
	}

	colTasks := make([]model.Task, 0, len(slots))
	for _, i := range slots {
		if i == slots[from] {
			continue
		}
		colTasks = append(colTasks, tasks[i])
	}
	moved := tasks[slots[from]]
	colTasks = append(colTasks, model.Task{})
	copy(colTasks[newIndex+1:], colTasks[newIndex:])
	colTasks[newIndex] = moved

	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	for k, i := range slots {
		out[i] = colTasks[k]
	}
	return out, true
}

// indexInColumn returns the position of taskID among the tasks of col, or -1.
func indexInColumn(tasks []model.Task, taskID model.ID, col model.Column) int {
	n := 0
	for i := range tasks {
		if tasks[i].Status != col {
			continue
		}
		if tasks[i].ID == taskID {
			return n
		}
		n++
	}
	return -1
}
