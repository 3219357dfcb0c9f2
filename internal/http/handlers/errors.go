package handlers

import (
	"encoding/json"
	"os"
	"sync"
)

// routeError is one failure recorded by a trigger route, drained into the
// run log at the end of the cycle. The file backing survives the process
// because each route in a run may be a separate invocation.
type routeError struct {
	Route   string `json:"route"`
	Type    string `json:"error_type"`
	Message string `json:"error_message"`
}

type errorCollector struct {
	mu   sync.Mutex
	path string
}

func newErrorCollector(path string) *errorCollector {
	if path == "" {
		path = "route_errors.json"
	}
	return &errorCollector{path: path}
}

func (e *errorCollector) load() []routeError {
	b, err := os.ReadFile(e.path)
	if err != nil {
		return nil
	}
	var errs []routeError
	if err := json.Unmarshal(b, &errs); err != nil {
		return nil
	}
	return errs
}

func (e *errorCollector) add(route string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := append(e.load(), routeError{
		Route:   route,
		Type:    "error",
		Message: err.Error(),
	})
	b, marshalErr := json.Marshal(errs)
	if marshalErr != nil {
		return
	}
	_ = os.WriteFile(e.path, b, 0o644)
}

// drain returns the collected errors and clears the file for the next cycle.
func (e *errorCollector) drain() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := e.load()
	_ = os.Remove(e.path)

	out := make([]string, 0, len(errs))
	for _, re := range errs {
		out = append(out, re.Route+": "+re.Message)
	}
	return out
}
