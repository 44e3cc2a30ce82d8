package console

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/testutil"
)

func TestNewErrorReport(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   errors.ErrorType
		wantCode   int
		reportable bool
		reloadable bool
	}{
		{
			name:       "api failure",
			err:        errors.New(errors.ErrorTypeAPI, "GET machines returned 500").WithDetail("status", 500),
			wantType:   errors.ErrorTypeAPI,
			wantCode:   500,
			reportable: true,
			reloadable: true,
		},
		{
			name:       "connection failure",
			err:        errors.Wrap(fmt.Errorf("dial tcp: refused"), errors.ErrorTypeConnection, "request failed"),
			wantType:   errors.ErrorTypeConnection,
			reloadable: true,
		},
		{
			name:       "signed out",
			err:        errors.New(errors.ErrorTypeAuthentication, "unauthorized").WithDetail("status", 401),
			wantType:   errors.ErrorTypeAuthentication,
			wantCode:   401,
			reloadable: true,
		},
		{
			name:     "validation",
			err:      errors.New(errors.ErrorTypeValidation, "ids are required"),
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:       "plain error",
			err:        stderrors.New("something odd"),
			wantType:   errors.ErrorTypeInternal,
			reportable: true,
			reloadable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewErrorReport(tt.err)
			assert.Equal(t, tt.wantType, report.Type)
			assert.Equal(t, tt.wantCode, report.Code)
			assert.Equal(t, tt.reportable, report.Reportable)
			assert.Equal(t, tt.reloadable, report.Reloadable)
			assert.NotEmpty(t, report.Message)
			assert.False(t, report.Time.IsZero())
		})
	}
}

func TestErrorReportMessage(t *testing.T) {
	report := NewErrorReport(errors.New(errors.ErrorTypeAPI, "GET stats returned 502"))
	assert.Equal(t, "GET stats returned 502", report.Message)

	report = NewErrorReport(stderrors.New("raw"))
	assert.Equal(t, "raw", report.Message)
}

func TestErrorDisplay(t *testing.T) {
	d := NewErrorDisplay(testutil.TestLogger(t))

	_, ok := d.Last()
	assert.False(t, ok)

	var shown []ErrorReport
	sub := d.OnShow(func(r ErrorReport) { shown = append(shown, r) })

	d.Show(nil)
	d.Show(errors.New(errors.ErrorTypeAPI, "first"))
	d.Show(errors.New(errors.ErrorTypeData, "second"))

	last, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, "second", last.Message)
	assert.Len(t, d.Reports(), 2)
	assert.Len(t, shown, 2)

	sub.Cancel()
	d.Show(errors.New(errors.ErrorTypeAPI, "third"))
	assert.Len(t, shown, 2)

	d.Clear()
	assert.Empty(t, d.Reports())
}

func TestErrorDisplayKeepsRecentHistory(t *testing.T) {
	d := NewErrorDisplay(nil)
	for i := 0; i < maxReports+5; i++ {
		d.Show(errors.Newf(errors.ErrorTypeAPI, "failure %d", i))
	}
	reports := d.Reports()
	require.Len(t, reports, maxReports)
	assert.Equal(t, "failure 5", reports[0].Message)
	assert.Equal(t, fmt.Sprintf("failure %d", maxReports+4), reports[maxReports-1].Message)
}
