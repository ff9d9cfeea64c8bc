package sitescraper

import "fmt"

// taskState tracks one coordinate through its fetch lifecycle.
//
//	pending -> fetching -> succeeded | empty | notFound   (terminal)
//	                    -> failed -> pending              (attempts left)
//	                    -> failed                         (terminal, budget spent)
type taskState int

const (
	taskPending taskState = iota
	taskFetching
	taskSucceeded
	taskEmpty
	taskNotFound
	taskFailed
)

func (s taskState) String() string {
	switch s {
	case taskPending:
		return "pending"
	case taskFetching:
		return "fetching"
	case taskSucceeded:
		return "succeeded"
	case taskEmpty:
		return "empty"
	case taskNotFound:
		return "not_found"
	case taskFailed:
		return "failed"
	}
	return fmt.Sprintf("taskState(%d)", int(s))
}

// task enforces the retry budget for a single coordinate. Not
// goroutine-safe: each task belongs to exactly one worker.
type task struct {
	state    taskState
	attempts int
	budget   int
	lastErr  error
}

func newTask(budget int) *task {
	if budget < 1 {
		budget = 1
	}
	return &task{state: taskPending, budget: budget}
}

// start moves a pending task into fetching, counting the attempt.
func (t *task) start() {
	if t.state != taskPending {
		panic(fmt.Sprintf("task.start from %s", t.state))
	}
	t.state = taskFetching
	t.attempts++
}

// observe applies the outcome of a fetch attempt. A transient failure
// returns the task to pending until the budget is spent; the other
// outcomes are terminal.
func (t *task) observe(outcome taskState, err error) {
	if t.state != taskFetching {
		panic(fmt.Sprintf("task.observe from %s", t.state))
	}
	switch outcome {
	case taskSucceeded, taskEmpty, taskNotFound:
		t.state = outcome
	case taskFailed:
		t.lastErr = err
		if t.attempts < t.budget {
			t.state = taskPending
		} else {
			t.state = taskFailed
		}
	default:
		panic(fmt.Sprintf("task.observe with non-outcome %s", outcome))
	}
}

func (t *task) terminal() bool {
	switch t.state {
	case taskSucceeded, taskEmpty, taskNotFound, taskFailed:
		return true
	}
	return false
}
