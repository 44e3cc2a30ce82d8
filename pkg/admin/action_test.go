package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/console/pkg/clients"
	"github.com/ajitpratap0/console/pkg/errors"
)

func TestAction_Validate(t *testing.T) {
	valid := Action{Op: OpActivate, Target: "users", IDs: []string{"u1", "u2"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		action Action
		field  string
	}{
		{"unknown op", Action{Op: "delete", Target: "users", IDs: []string{"u1"}}, "op"},
		{"missing target", Action{Op: OpVerify, IDs: []string{"u1"}}, "target"},
		{"missing ids", Action{Op: OpReject, Target: "users"}, "ids"},
		{"blank id", Action{Op: OpReject, Target: "users", IDs: []string{" "}}, "ids"},
		{"contact without subject", Action{Op: OpContact, Target: "users", IDs: []string{"u1"}, Text: "hi"}, "subject"},
		{"contact without text", Action{Op: OpContact, Target: "users", IDs: []string{"u1"}, Subject: "hi"}, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			require.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			var e *errors.Error
			require.True(t, errors.As(err, &e))
			field, _ := e.Detail("field")
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp(" Deactivate ")
	require.NoError(t, err)
	assert.Equal(t, OpDeactivate, op)

	_, err = ParseOp("purge")
	assert.Error(t, err)
}

func TestService_Submit(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+DefaultPath, r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		received = string(data)
		_, _ = io.WriteString(w, `{"updated":2}`)
	}))
	defer srv.Close()

	cfg := clients.DefaultHTTPConfig()
	cfg.BaseURL = srv.URL
	cfg.EnableHTTP2 = false
	client, err := clients.NewHTTPClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	svc := NewService(client, "", zaptest.NewLogger(t))
	status, err := svc.Submit(context.Background(), Action{
		Op:      OpContact,
		Target:  "users",
		IDs:     []string{"u1", "u2"},
		Subject: "Maintenance",
		Text:    "Tonight at 22:00",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, float64(2), status.Body["updated"])
	assert.JSONEq(t, `{"op":"contact","target":"users","ids":["u1","u2"],"subject":"Maintenance","text":"Tonight at 22:00"}`, received)
}

type recordingSubmitter struct {
	calls int
	err   error
}

func (r *recordingSubmitter) SubmitJSON(ctx context.Context, path string, payload interface{}) (*clients.Status, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &clients.Status{Code: http.StatusOK}, nil
}

func TestService_SubmitInvalidSendsNothing(t *testing.T) {
	sub := &recordingSubmitter{}
	svc := NewService(sub, "", nil)

	_, err := svc.Submit(context.Background(), Action{Op: OpAccept, Target: "users"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Zero(t, sub.calls)
}

func TestService_SubmitNoRetry(t *testing.T) {
	sub := &recordingSubmitter{err: errors.New(errors.ErrorTypeConnection, "refused")}
	svc := NewService(sub, "custom", nil)

	_, err := svc.Submit(context.Background(), Action{Op: OpAccept, Target: "users", IDs: []string{"u1"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, 1, sub.calls)
}
