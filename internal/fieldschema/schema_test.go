package fieldschema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasDefaultField(t *testing.T) {
	s := New()
	require.Equal(t, []FieldTag{{Tag: DefaultTag, Label: DefaultLabel}}, s.Fields())
}

func TestRemoveRefusesLastField(t *testing.T) {
	s := New()
	err := s.Remove(0)
	require.ErrorIs(t, err, ErrMinimumFields)
	assert.Equal(t, 1, s.Len())

	s.Add()
	require.NoError(t, s.Remove(0))
	assert.Equal(t, 1, s.Len())
	require.ErrorIs(t, s.Remove(0), ErrMinimumFields)
}

func TestRemoveOutOfRange(t *testing.T) {
	s := New()
	s.Add()
	require.ErrorIs(t, s.Remove(5), ErrIndexOutOfRange)
	require.ErrorIs(t, s.Remove(-1), ErrIndexOutOfRange)
	assert.Equal(t, 2, s.Len())
}

func TestUpdateLabelRegeneratesTag(t *testing.T) {
	s := New()
	s.Add()
	require.NoError(t, s.Update(1, AttrTag, "manual"))
	require.NoError(t, s.Update(1, AttrLabel, "Start Date"))

	got := s.Fields()[1]
	assert.Equal(t, FieldTag{Tag: "start_date", Label: "Start Date"}, got)

	require.NoError(t, s.Update(1, AttrTag, "begin"))
	assert.Equal(t, "begin", s.Fields()[1].Tag)

	err := s.Update(1, Attribute("color"), "red")
	assert.True(t, errors.Is(err, ErrUnknownAttribute))
}

func TestFieldsReturnsCopy(t *testing.T) {
	s := New()
	fields := s.Fields()
	fields[0].Label = "changed"
	assert.Equal(t, DefaultLabel, s.Fields()[0].Label)
}

func TestValuesAndBind(t *testing.T) {
	fields := []FieldTag{{Tag: "candidate_name", Label: "Candidate"}, {Tag: "job_title", Label: "Job"}}
	s := FromFields(fields)
	assert.Equal(t, map[string]string{"candidate_name": "", "job_title": ""}, s.Values())

	bound := Bind(fields, map[string]string{"job_title": "Engineer", "other": "x"})
	assert.Equal(t, map[string]string{"candidate_name": "", "job_title": "Engineer"}, bound)
}
