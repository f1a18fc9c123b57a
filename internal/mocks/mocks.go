// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/harness"
	"github.com/xkilldash9x/rehydrate/internal/suite"
)

// -- Config Mock --

// MockConfig mocks config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Settle() config.SettleConfig {
	args := m.Called()
	return args.Get(0).(config.SettleConfig)
}

func (m *MockConfig) Assert() config.AssertConfig {
	args := m.Called()
	return args.Get(0).(config.AssertConfig)
}

func (m *MockConfig) Suite() config.SuiteConfig {
	args := m.Called()
	return args.Get(0).(config.SuiteConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

// -- Driver Mock --

// MockDriver mocks harness.Driver. It does not implement harness.PendingProbe,
// so sessions built on it need Options.Probe set.
type MockDriver struct {
	mock.Mock
}

var _ harness.Driver = (*MockDriver)(nil)

func (m *MockDriver) Navigate(ctx context.Context, url string) (int, error) {
	args := m.Called(ctx, url)
	return args.Int(0), args.Error(1)
}

func (m *MockDriver) Back(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Find(ctx context.Context, q harness.Query) ([]harness.Element, error) {
	args := m.Called(ctx, q)
	var els []harness.Element
	if v := args.Get(0); v != nil {
		els = v.([]harness.Element)
	}
	return els, args.Error(1)
}

func (m *MockDriver) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Evaluate records the call. Tests populate res with mock.Run.
func (m *MockDriver) Evaluate(ctx context.Context, expr string, res any) error {
	return m.Called(ctx, expr, res).Error(0)
}

func (m *MockDriver) Click(ctx context.Context, el harness.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockDriver) SetValue(ctx context.Context, el harness.Element, value string) error {
	return m.Called(ctx, el, value).Error(0)
}

func (m *MockDriver) PageErrors() []harness.PageError {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]harness.PageError)
	}
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Probe Mock --

// MockPendingProbe mocks harness.PendingProbe.
type MockPendingProbe struct {
	mock.Mock
}

func (m *MockPendingProbe) Pending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// -- Suite Mocks --

// MockDriverFactory mocks suite.DriverFactory.
type MockDriverFactory struct {
	mock.Mock
}

var _ suite.DriverFactory = (*MockDriverFactory)(nil)

func (m *MockDriverFactory) NewDriver(ctx context.Context, kind string) (harness.Driver, harness.PendingProbe, error) {
	args := m.Called(ctx, kind)
	var (
		drv   harness.Driver
		probe harness.PendingProbe
	)
	if v := args.Get(0); v != nil {
		drv = v.(harness.Driver)
	}
	if v := args.Get(1); v != nil {
		probe = v.(harness.PendingProbe)
	}
	return drv, probe, args.Error(2)
}

// MockObserver mocks suite.Observer.
type MockObserver struct {
	mock.Mock
}

var _ suite.Observer = (*MockObserver)(nil)

func (m *MockObserver) ScenarioFinished(driver, status string, d time.Duration) {
	m.Called(driver, status, d)
}

func (m *MockObserver) SettleObserved(elapsed time.Duration, err error) {
	m.Called(elapsed, err)
}
