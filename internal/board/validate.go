package board

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"sprintdesk/internal/model"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("column", func(fl validator.FieldLevel) bool {
			c := model.Column(fl.Field().String())
			return c == "" || c.Valid()
		})
		validate = v
	})
	return validate
}

func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return ValidationError{Field: fieldPath(fe), Reason: reasonForTag(fe.Tag())}
	}
	return ValidationError{Reason: err.Error()}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func reasonForTag(tag string) string {
	switch tag {
	case "required", "min":
		return "must not be empty"
	case "max":
		return "is too long"
	case "column":
		return "unknown column"
	default:
		return "failed " + tag
	}
}

// validatePrerequisites rejects self-dependencies. Cycles are not checked (see Cycles).
func validatePrerequisites(taskID model.ID, ids []model.ID) error {
	if taskID.IsZero() {
		return nil
	}
	if model.ContainsID(ids, taskID) {
		return ValidationError{Field: "prerequisiteTaskIds", Reason: "a task cannot depend on itself"}
	}
	return nil
}

func trimDraft(d model.TaskDraft) model.TaskDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Subtasks = append([]model.Subtask(nil), d.Subtasks...)
	for i := range d.Subtasks {
		d.Subtasks[i].Title = strings.TrimSpace(d.Subtasks[i].Title)
	}
	return d
}

func trimPatch(p model.TaskPatch) model.TaskPatch {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.Subtasks != nil {
		subs := append([]model.Subtask(nil), (*p.Subtasks)...)
		for i := range subs {
			subs[i].Title = strings.TrimSpace(subs[i].Title)
		}
		p.Subtasks = &subs
	}
	return p
}
