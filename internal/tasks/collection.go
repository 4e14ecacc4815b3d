package tasks

import "github.com/existflow/taskpilot/internal/model"

// upsert replaces the task with the same id, or appends it
func upsert(list []model.Task, t model.Task) []model.Task {
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

// removeByID filters out the task with the given id; absence is fine
func removeByID(list []model.Task, id int64) []model.Task {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// findByID returns a copy of the task with the given id
func findByID(list []model.Task, id int64) (model.Task, bool) {
	for i := range list {
		if list[i].ID == id {
			return list[i], true
		}
	}
	return model.Task{}, false
}
