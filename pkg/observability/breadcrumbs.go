package observability

import (
	"sync"
	"time"
)

// MaxBreadcrumbs is the maximum number of breadcrumbs kept; older entries
// are discarded first.
const MaxBreadcrumbs = 100

// Breadcrumb is one entry in the trail of events leading up to an error.
type Breadcrumb struct {
	// Category groups breadcrumbs, e.g. "socket", "render", "module".
	Category string

	// Message is the human readable description.
	Message string

	// Data is optional structured payload.
	Data map[string]interface{}

	// Timestamp is when the breadcrumb was recorded.
	Timestamp time.Time
}

var (
	breadcrumbMu sync.Mutex
	breadcrumbs  []Breadcrumb
)

// RecordBreadcrumb appends a breadcrumb to the global trail, evicting the
// oldest entry when the trail is full.
func RecordBreadcrumb(category, message string, data map[string]interface{}) {
	breadcrumbMu.Lock()
	defer breadcrumbMu.Unlock()
	breadcrumbs = append(breadcrumbs, Breadcrumb{
		Category:  category,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
	if len(breadcrumbs) > MaxBreadcrumbs {
		breadcrumbs = breadcrumbs[len(breadcrumbs)-MaxBreadcrumbs:]
	}
}

// GetBreadcrumbs returns a copy of the current trail, oldest first.
func GetBreadcrumbs() []Breadcrumb {
	breadcrumbMu.Lock()
	defer breadcrumbMu.Unlock()
	return append([]Breadcrumb(nil), breadcrumbs...)
}

// ClearBreadcrumbs empties the trail.
func ClearBreadcrumbs() {
	breadcrumbMu.Lock()
	defer breadcrumbMu.Unlock()
	breadcrumbs = nil
}
