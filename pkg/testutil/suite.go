package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// APITestSuite provides a fake console API and a context per test
type APITestSuite struct {
	suite.Suite
	API    *FakeAPI
	Logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// SetupTest starts a fresh fake API
func (s *APITestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 30*time.Second)
	s.API = NewFakeAPI(s.T())
	s.Logger = TestLogger(s.T())
}

// TearDownTest cancels the test context
func (s *APITestSuite) TearDownTest() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Context returns the test context
func (s *APITestSuite) Context() context.Context {
	return s.ctx
}

// WaitFor fails the test when condition does not hold within 5 seconds
func (s *APITestSuite) WaitFor(condition func() bool, msg string) {
	s.Require().Eventually(condition, 5*time.Second, 5*time.Millisecond, msg)
}
