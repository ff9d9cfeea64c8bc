package sitescraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskSucceedsFirstAttempt(t *testing.T) {
	task := newTask(3)
	require.False(t, task.terminal())

	task.start()
	task.observe(taskSucceeded, nil)
	require.True(t, task.terminal())
	require.Equal(t, taskSucceeded, task.state)
	require.Equal(t, 1, task.attempts)
}

func TestTaskNotFoundIsTerminal(t *testing.T) {
	task := newTask(3)
	task.start()
	task.observe(taskNotFound, nil)
	require.True(t, task.terminal())
	require.Equal(t, 1, task.attempts)
}

func TestTaskRetriesUntilBudgetSpent(t *testing.T) {
	task := newTask(3)
	errBoom := errors.New("boom")

	task.start()
	task.observe(taskFailed, errBoom)
	require.False(t, task.terminal())
	require.Equal(t, taskPending, task.state)

	task.start()
	task.observe(taskFailed, errBoom)
	require.False(t, task.terminal())

	task.start()
	task.observe(taskFailed, errBoom)
	require.True(t, task.terminal())
	require.Equal(t, taskFailed, task.state)
	require.Equal(t, 3, task.attempts)
	require.Equal(t, errBoom, task.lastErr)
}

func TestTaskRecoversAfterTransientFailure(t *testing.T) {
	task := newTask(2)

	task.start()
	task.observe(taskFailed, errors.New("timeout"))
	task.start()
	task.observe(taskSucceeded, nil)

	require.Equal(t, taskSucceeded, task.state)
	require.Equal(t, 2, task.attempts)
}

func TestTaskBudgetFloor(t *testing.T) {
	task := newTask(0)
	task.start()
	task.observe(taskFailed, errors.New("boom"))
	require.True(t, task.terminal())
	require.Equal(t, 1, task.attempts)
}

func TestTaskRejectsInvalidTransitions(t *testing.T) {
	task := newTask(1)
	require.Panics(t, func() { task.observe(taskSucceeded, nil) })

	task.start()
	require.Panics(t, func() { task.start() })

	task.observe(taskSucceeded, nil)
	require.Panics(t, func() { task.start() })
}
