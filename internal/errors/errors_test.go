package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationf(t *testing.T) {
	err := Validationf("column %q does not exist", "Region")
	require.Error(t, err)
	assert.Equal(t, `column "Region" does not exist`, err.Error())
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestKindSurvivesWrap(t *testing.T) {
	err := Wrap(NotFoundf("file %q", "sales.csv"), "load dataset")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "load dataset")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(New("boom")))
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		var m map[string]int
		m["x"] = 1
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal error")
	assert.Equal(t, KindInternal, KindOf(err))

	ok := func() (err error) {
		defer Recover(&err)
		return nil
	}
	assert.NoError(t, ok())
}

func TestRecoverNonError(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic("unexpected shape")
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected shape")
}

func TestHintsSurviveMark(t *testing.T) {
	err := WithHint(NotFoundf("file %q not found", "a.csv"), "upload it first")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"upload it first"}, Hints(err))
	assert.Equal(t, `file "a.csv" not found`, err.Error())
}
