package model

// TaskDraft is the payload for creating a task.
type TaskDraft struct {
	Title               string    `json:"title" validate:"required,max=255"`
	Description         string    `json:"description"`
	Status              Column    `json:"status" validate:"column"`
	SprintID            ID        `json:"sprintId" validate:"required"`
	AssignedUserID      ID        `json:"assignedUserId,omitempty"`
	Subtasks            []Subtask `json:"subtasks,omitempty" validate:"dive"`
	PrerequisiteTaskIDs []ID      `json:"prerequisiteTaskIds,omitempty"`
}

// TaskPatch is a partial task update. Nil fields are not sent.
type TaskPatch struct {
	Title               *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description         *string    `json:"description,omitempty"`
	Status              *Column    `json:"status,omitempty" validate:"omitempty,column"`
	AssignedUserID      *ID        `json:"assignedUserId,omitempty"`
	Subtasks            *[]Subtask `json:"subtasks,omitempty" validate:"omitempty,dive"`
	PrerequisiteTaskIDs *[]ID      `json:"prerequisiteTaskIds,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.AssignedUserID == nil &&
		p.Subtasks == nil && p.PrerequisiteTaskIDs == nil
}

// SendMessage is the payload for posting a project message.
type SendMessage struct {
	ProjectID ID     `json:"projectId" validate:"required"`
	Content   string `json:"content" validate:"required"`
}
