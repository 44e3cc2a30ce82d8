// Package admin builds and submits bulk account actions from the admin
// dashboard.
package admin

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/console/pkg/clients"
	"github.com/ajitpratap0/console/pkg/errors"
)

// DefaultPath is the API path bulk actions are posted to
const DefaultPath = "admin/actions"

// Op is a bulk action verb
type Op string

const (
	OpActivate   Op = "activate"
	OpAccept     Op = "accept"
	OpVerify     Op = "verify"
	OpDeactivate Op = "deactivate"
	OpReject     Op = "reject"
	OpContact    Op = "contact"
)

// Ops lists every supported operation
var Ops = []Op{OpActivate, OpAccept, OpVerify, OpDeactivate, OpReject, OpContact}

// ParseOp returns the Op named s
func ParseOp(s string) (Op, error) {
	op := Op(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Ops {
		if op == known {
			return op, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown admin operation %q", s).
		WithDetail("field", "op")
}

// Action is the payload of a bulk action
type Action struct {
	Op      Op       `json:"op"`
	Target  string   `json:"target"`
	IDs     []string `json:"ids"`
	Subject string   `json:"subject,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Validate checks the required fields. The returned validation error
// carries the offending field under the "field" detail so forms can show
// the message inline.
func (a Action) Validate() error {
	if _, err := ParseOp(string(a.Op)); err != nil {
		return err
	}
	if strings.TrimSpace(a.Target) == "" {
		return required("target")
	}
	if len(a.IDs) == 0 {
		return required("ids")
	}
	for _, id := range a.IDs {
		if strings.TrimSpace(id) == "" {
			return errors.New(errors.ErrorTypeValidation, "ids must not contain blanks").
				WithDetail("field", "ids")
		}
	}
	if a.Op == OpContact {
		if strings.TrimSpace(a.Subject) == "" {
			return required("subject")
		}
		if strings.TrimSpace(a.Text) == "" {
			return required("text")
		}
	}
	return nil
}

func required(field string) error {
	return errors.Newf(errors.ErrorTypeValidation, "%s is required", field).
		WithDetail("field", field)
}

// Submitter posts JSON payloads, see clients.HTTPClient
type Submitter interface {
	SubmitJSON(ctx context.Context, path string, payload interface{}) (*clients.Status, error)
}

// Service submits validated actions
type Service struct {
	client Submitter
	path   string
	logger *zap.Logger
}

// NewService creates a service posting to path, or DefaultPath when empty
func NewService(client Submitter, path string, logger *zap.Logger) *Service {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		path:   path,
		logger: logger.With(zap.String("component", "admin")),
	}
}

// Submit validates and posts a. Nothing is sent when validation fails and
// failed submissions are not retried.
func (s *Service) Submit(ctx context.Context, a Action) (*clients.Status, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	status, err := s.client.SubmitJSON(ctx, s.path, a)
	if err != nil {
		s.logger.Warn("admin action failed",
			zap.String("op", string(a.Op)),
			zap.String("target", a.Target),
			zap.Int("ids", len(a.IDs)),
			zap.Error(err))
		return nil, err
	}
	s.logger.Info("admin action submitted",
		zap.String("op", string(a.Op)),
		zap.String("target", a.Target),
		zap.Int("ids", len(a.IDs)),
		zap.Int("status", status.Code))
	return status, nil
}
