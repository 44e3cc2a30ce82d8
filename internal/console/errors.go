package console

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/models"
)

// maxReports bounds the error history
const maxReports = 50

// ErrorReport is what the global error surface shows
type ErrorReport struct {
	// Code is the HTTP status when the error came from the API, else 0
	Code    int                    `json:"code"`
	Type    errors.ErrorType       `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	// Reportable errors offer a "report" action
	Reportable bool `json:"reportable"`
	// Reloadable errors offer a "reload" action
	Reloadable bool      `json:"reloadable"`
	Time       time.Time `json:"time"`
}

// NewErrorReport classifies err
func NewErrorReport(err error) ErrorReport {
	report := ErrorReport{
		Type:    errors.TypeOf(err),
		Message: err.Error(),
		Time:    time.Now(),
	}

	var e *errors.Error
	if errors.As(err, &e) {
		report.Message = e.Message
		if len(e.Details) > 0 {
			report.Details = make(map[string]interface{}, len(e.Details))
			for k, v := range e.Details {
				report.Details[k] = v
			}
		}
		if code, ok := e.Details["status"].(int); ok {
			report.Code = code
		}
	}

	switch report.Type {
	case errors.ErrorTypeConnection:
		report.Reloadable = true
	case errors.ErrorTypeAPI, errors.ErrorTypeData, errors.ErrorTypeInternal:
		report.Reportable = true
		report.Reloadable = true
	case errors.ErrorTypeAuthentication, errors.ErrorTypeNotFound:
		report.Reloadable = true
	}
	return report
}

// ErrorDisplay is the single surface for network and API errors. Show is
// called from the event loop; Reports and Last may be read from anywhere.
type ErrorDisplay struct {
	mu      sync.Mutex
	reports []ErrorReport
	shown   models.Emitter[ErrorReport]
	logger  *zap.Logger
}

// NewErrorDisplay creates an empty display
func NewErrorDisplay(logger *zap.Logger) *ErrorDisplay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorDisplay{logger: logger.With(zap.String("component", "error_display"))}
}

// Show records err and notifies listeners. Nil errors are ignored.
func (d *ErrorDisplay) Show(err error) {
	if err == nil {
		return
	}
	report := NewErrorReport(err)

	d.mu.Lock()
	d.reports = append(d.reports, report)
	if len(d.reports) > maxReports {
		d.reports = d.reports[len(d.reports)-maxReports:]
	}
	d.mu.Unlock()

	d.logger.Warn("error shown",
		zap.String("type", string(report.Type)),
		zap.Int("code", report.Code),
		zap.String("message", report.Message))
	d.shown.Emit(report)
}

// OnShow subscribes fn to new reports
func (d *ErrorDisplay) OnShow(fn func(ErrorReport)) models.Subscription {
	return d.shown.Listen(fn)
}

// Last returns the most recent report
func (d *ErrorDisplay) Last() (ErrorReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.reports) == 0 {
		return ErrorReport{}, false
	}
	return d.reports[len(d.reports)-1], true
}

// Reports returns a copy of the history, oldest first
func (d *ErrorDisplay) Reports() []ErrorReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ErrorReport(nil), d.reports...)
}

// Clear drops the history
func (d *ErrorDisplay) Clear() {
	d.mu.Lock()
	d.reports = nil
	d.mu.Unlock()
}
