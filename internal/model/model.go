package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ID is an opaque identifier. The backend emits numeric ids; they are kept as strings on the
// client and written back as JSON numbers when they look numeric.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

func (id ID) numeric() bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// ContainsID reports whether ids contains id.
func ContainsID(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type Column string

const (
	ColumnTodo       Column = "todo"
	ColumnInProgress Column = "in-progress"
	ColumnDone       Column = "done"
)

type ColumnDef struct {
	ID    Column `json:"id"`
	Label string `json:"label"`
}

var columnDefs = []ColumnDef{
	{ID: ColumnTodo, Label: "À Faire"},
	{ID: ColumnInProgress, Label: "En Cours"},
	{ID: ColumnDone, Label: "Terminé"},
}

// Columns returns the fixed board lanes in display order.
func Columns() []ColumnDef {
	return append([]ColumnDef(nil), columnDefs...)
}

func (c Column) Valid() bool {
	for _, d := range columnDefs {
		if d.ID == c {
			return true
		}
	}
	return false
}

func (c Column) Label() string {
	for _, d := range columnDefs {
		if d.ID == c {
			return d.Label
		}
	}
	return string(c)
}

// ParseColumn accepts a column id, case-insensitively.
func ParseColumn(s string) (Column, bool) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if c == "in_progress" {
		c = ColumnInProgress
	}
	return c, c.Valid()
}

// Subtask status labels used on the wire.
const (
	SubtaskLabelDone = "Fait"
	SubtaskLabelTodo = "À faire"
)

func SubtaskLabel(completed bool) string {
	if completed {
		return SubtaskLabelDone
	}
	return SubtaskLabelTodo
}

type Subtask struct {
	ID        ID     `json:"id"`
	Title     string `json:"title" validate:"required"`
	Completed bool   `json:"completed"`
}

type subtaskWire struct {
	ID     ID     `json:"id,omitempty"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (s Subtask) MarshalJSON() ([]byte, error) {
	return json.Marshal(subtaskWire{ID: s.ID, Title: s.Title, Status: SubtaskLabel(s.Completed)})
}

func (s *Subtask) UnmarshalJSON(b []byte) error {
	var w subtaskWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Subtask{ID: w.ID, Title: w.Title, Completed: strings.TrimSpace(w.Status) == SubtaskLabelDone}
	return nil
}

type Task struct {
	ID                    ID        `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Status                Column    `json:"status"`
	SprintID              ID        `json:"sprintId,omitempty"`
	AssignedUserID        ID        `json:"assignedUserId,omitempty"`
	AssignedUserFirstname string    `json:"assignedUserFirstname,omitempty"`
	AssignedUserLastname  string    `json:"assignedUserLastname,omitempty"`
	Subtasks              []Subtask `json:"subtasks"`
	PrerequisiteTaskIDs   []ID      `json:"prerequisiteTaskIds"`
}

// Clone returns a deep copy so snapshots never alias live slices.
func (t Task) Clone() Task {
	out := t
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.PrerequisiteTaskIDs != nil {
		out.PrerequisiteTaskIDs = append([]ID(nil), t.PrerequisiteTaskIDs...)
	}
	return out
}

func (t Task) AssigneeName() string {
	name := strings.TrimSpace(t.AssignedUserFirstname + " " + t.AssignedUserLastname)
	if strings.TrimSpace(t.AssignedUserFirstname) == "" {
		return "Non assignée"
	}
	return name
}

// SubtaskProgress returns (done, total) for the task's subtasks.
func (t Task) SubtaskProgress() (int, int) {
	done := 0
	for _, st := range t.Subtasks {
		if st.Completed {
			done++
		}
	}
	return done, len(t.Subtasks)
}

// CloneTasks deep-copies a task list.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
