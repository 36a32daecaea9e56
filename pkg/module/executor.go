package module

// Executor runs a module's body on an execution context other than the
// caller's. Submit must not run task synchronously.
type Executor interface {
	Submit(task func()) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func()) error

// Submit calls f(task).
func (f ExecutorFunc) Submit(task func()) error {
	return f(task)
}

// GoExecutor runs every task on a new goroutine.
var GoExecutor Executor = ExecutorFunc(func(task func()) error {
	go task()
	return nil
})
