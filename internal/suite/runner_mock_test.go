// internal/suite/runner_mock_test.go
package suite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
	"github.com/xkilldash9x/rehydrate/internal/mocks"
	"github.com/xkilldash9x/rehydrate/internal/suite"
)

func TestRunner_NavigationFailureWithMocks(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SuiteCfg.BaseURL = "http://app.test"

	refused := errors.New("net::ERR_CONNECTION_REFUSED")
	drv := &mocks.MockDriver{}
	drv.On("Navigate", mock.Anything, "http://app.test/pure_component").Return(0, refused).Once()
	drv.On("Close", mock.Anything).Return(nil).Once()

	factory := &mocks.MockDriverFactory{}
	factory.On("NewDriver", mock.Anything, "chrome").Return(drv, nil, nil).Once()

	obs := &mocks.MockObserver{}
	obs.On("ScenarioFinished", "chrome", "failed", mock.Anything).Once()

	scenarios, err := suite.Select(suite.All(), "Pure Component")
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	summary, err := suite.NewRunner(cfg, factory, zaptest.NewLogger(t), suite.WithObserver(obs)).
		Run(context.Background(), scenarios)
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, suite.StatusFailed, res.Status)
	assert.Equal(t, "visit /pure_component", res.FailedStep)
	var navErr *harness.NavigationError
	require.ErrorAs(t, res.Err, &navErr)
	assert.ErrorIs(t, res.Err, refused)
	assert.NotEmpty(t, res.SessionID)

	drv.AssertExpectations(t)
	factory.AssertExpectations(t)
	obs.AssertExpectations(t)
	obs.AssertNotCalled(t, "SettleObserved", mock.Anything, mock.Anything)
}

func TestRunner_StaticDriverRequestedWithMocks(t *testing.T) {
	defaults := config.NewDefaultConfig()
	cfg := &mocks.MockConfig{}
	cfg.On("Suite").Return(defaults.Suite())
	cfg.On("Browser").Return(defaults.Browser())
	cfg.On("Settle").Return(defaults.Settle()).Maybe()
	cfg.On("Assert").Return(defaults.Assert()).Maybe()

	factory := &mocks.MockDriverFactory{}
	factory.On("NewDriver", mock.Anything, "static").Return(nil, nil, errors.New("no client")).Once()

	scenarios, err := suite.Select(suite.All(), "server_side_log_throw_raise")
	require.NoError(t, err)

	summary, err := suite.NewRunner(cfg, factory, zaptest.NewLogger(t)).Run(context.Background(), scenarios)
	require.NoError(t, err)
	assert.Equal(t, suite.StatusFailed, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, "failed to start static driver: no client")
	factory.AssertExpectations(t)
	cfg.AssertExpectations(t)
}
