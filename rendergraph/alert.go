package rendergraph

import "fmt"

// Alert is a configuration or usage error in the construction of a render
// graph: a programmer mistake that must surface immediately. Builder
// methods raise alerts by panicking; Graph.Generate and the task runner
// recover them into ordinary errors at the nearest boundary.
type Alert struct {
	Message string
}

func (a *Alert) Error() string { return a.Message }

func throwAlert(format string, args ...interface{}) {
	panic(&Alert{Message: fmt.Sprintf(format, args...)})
}

// recoverAlert converts a panicking *Alert into err. Other panic values
// are passed through.
func recoverAlert(err *error) {
	if r := recover(); r != nil {
		if alert, ok := r.(*Alert); ok {
			*err = alert
			return
		}
		panic(r)
	}
}
