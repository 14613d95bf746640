package helper

import (
	"fmt"
	"net/http"
	"sync"
)

// ErrorReporter is the subset of the error handler needed by background tasks.
type ErrorReporter interface {
	ReportServerError(r *http.Request, err error)
}

type HelperRepository struct {
	baseUrl  *string
	WG       *sync.WaitGroup
	reporter ErrorReporter
}

func New(baseUrl *string, wg *sync.WaitGroup, reporter ErrorReporter) *HelperRepository {
	return &HelperRepository{
		baseUrl:  baseUrl,
		WG:       wg,
		reporter: reporter,
	}
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn on its own goroutine so the request can return
// without waiting on side work like emails and audit writes.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	go func() {
		defer h.WG.Done()

		defer func() {
			err := recover()
			if err != nil && h.reporter != nil {
				h.reporter.ReportServerError(r, fmt.Errorf("%s", err))
			}
		}()

		err := fn()
		if err != nil && h.reporter != nil {
			h.reporter.ReportServerError(r, err)
		}
	}()
}
