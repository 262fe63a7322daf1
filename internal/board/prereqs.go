package board

import (
	"strings"

	"sprintdesk/internal/model"
)

// Cycles reports prerequisite cycles among tasks. Each cycle starts and ends with the same id.
// The backend accepts cyclic prerequisites, so this is a diagnostic rather than a validation.
func Cycles(tasks []model.Task) [][]model.ID {
	graph := make(map[model.ID][]model.ID, len(tasks))
	order := make([]model.ID, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := graph[t.ID]; !ok {
			order = append(order, t.ID)
		}
		graph[t.ID] = append(graph[t.ID], t.PrerequisiteTaskIDs...)
	}

	visited := map[model.ID]bool{}
	onStack := map[model.ID]bool{}
	seen := map[string]bool{}
	var stack []model.ID
	var cycles [][]model.ID

	var dfs func(n model.ID)
	dfs = func(n model.ID) {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for _, m := range graph[n] {
			if !visited[m] {
				dfs(m)
				continue
			}
			if !onStack[m] {
				continue
			}
			var cycle []model.ID
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append([]model.ID{stack[i]}, cycle...)
				if stack[i] == m {
					break
				}
			}
			cycle = append(cycle, m)
			key := cycleKey(cycle)
			if !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
	}

	for _, n := range order {
		if !visited[n] {
			dfs(n)
		}
	}
	return cycles
}

func cycleKey(ids []model.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, "->")
}

// Blocked returns the prerequisites of task that are on the board and not done yet.
func Blocked(task model.Task, tasks []model.Task) []model.Task {
	out := make([]model.Task, 0)
	for _, id := range task.PrerequisiteTaskIDs {
		i := indexOfTask(tasks, id)
		if i >= 0 && tasks[i].Status != model.ColumnDone {
			out = append(out, tasks[i])
		}
	}
	return out
}
