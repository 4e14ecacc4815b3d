package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskPredicates(t *testing.T) {
	yesterday := time.Now().Add(-24 * time.Hour)
	tomorrow := time.Now().Add(48 * time.Hour)

	overdue := Task{Status: StatusTodo, DueDate: &yesterday}
	assert.True(t, overdue.IsOverdue())
	assert.True(t, overdue.IsDue())

	upcoming := Task{Status: StatusTodo, DueDate: &tomorrow}
	assert.False(t, upcoming.IsOverdue())

	undated := Task{Status: StatusTodo}
	assert.False(t, undated.IsDue())
	assert.False(t, undated.IsOverdue())

	done := Task{Status: StatusCompleted}
	assert.True(t, done.IsDone())
	assert.False(t, done.IsArchived())

	shelved := Task{Status: StatusArchived}
	assert.True(t, shelved.IsArchived())
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusArchived} {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus("pending"))
	assert.False(t, ValidStatus(""))
}

func TestUserRoles(t *testing.T) {
	u := User{Roles: []string{"user", "admin"}}
	assert.True(t, u.HasRole("user"))
	assert.True(t, u.IsAdmin())

	plain := User{Roles: []string{"user"}}
	assert.False(t, plain.IsAdmin())
}
