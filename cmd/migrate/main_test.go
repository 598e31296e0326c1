package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error             { return m.Called().Error(0) }
func (m *MockMigrator) Down() error           { return m.Called().Error(0) }
func (m *MockMigrator) Steps(n int) error     { return m.Called(n).Error(0) }
func (m *MockMigrator) Force(v int) error     { return m.Called(v).Error(0) }
func (m *MockMigrator) Close() (error, error) { return nil, nil }

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func TestRun_Up(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(nil)
	m.On("Version").Return(uint(1), false, nil)

	assert.NoError(t, run(m, "up", ""))
	m.AssertExpectations(t)
}

func TestRun_UpNoChange(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(migrate.ErrNoChange)
	m.On("Version").Return(uint(1), false, nil)

	assert.NoError(t, run(m, "up", ""))
}

func TestRun_DownFails(t *testing.T) {
	m := new(MockMigrator)
	m.On("Down").Return(errors.New("boom"))

	err := run(m, "down", "")
	assert.ErrorContains(t, err, "migration down failed")
	m.AssertNotCalled(t, "Version")
}

func TestRun_Steps(t *testing.T) {
	m := new(MockMigrator)
	m.On("Steps", -1).Return(nil)
	m.On("Version").Return(uint(0), false, migrate.ErrNilVersion)

	assert.NoError(t, run(m, "steps", "-1"))
	m.AssertExpectations(t)
}

func TestRun_StepsInvalid(t *testing.T) {
	m := new(MockMigrator)
	assert.Error(t, run(m, "steps", "abc"))
	assert.Error(t, run(m, "steps", "0"))
	m.AssertNotCalled(t, "Steps", mock.Anything)
}

func TestRun_Force(t *testing.T) {
	m := new(MockMigrator)
	m.On("Force", 1).Return(nil)
	m.On("Version").Return(uint(1), false, nil)

	assert.NoError(t, run(m, "force", "1"))
	m.AssertExpectations(t)
}

func TestRun_VersionError(t *testing.T) {
	m := new(MockMigrator)
	m.On("Version").Return(uint(0), false, errors.New("db down"))

	assert.ErrorContains(t, run(m, "version", ""), "failed to read version")
}

func TestRun_UnknownMode(t *testing.T) {
	assert.ErrorContains(t, run(new(MockMigrator), "sideways", ""), "unknown mode")
}
