package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/eventcore/settings"
)

func TestOverridesTakePrecedenceOverEnv(t *testing.T) {
	t.Setenv("EVENTCORE_TEST_KEY", "from-process-env")
	env := settings.New(map[string]string{"EVENTCORE_TEST_KEY": "from-override"})
	assert.Equal(t, "from-override", env.GetString("EVENTCORE_TEST_KEY", "fallback"))
}

func TestFallsBackToProcessEnv(t *testing.T) {
	t.Setenv("EVENTCORE_TEST_KEY_2", "from-process-env")
	env := settings.New(nil)
	assert.Equal(t, "from-process-env", env.GetString("EVENTCORE_TEST_KEY_2", "fallback"))
}

func TestGetBoolTruthyValues(t *testing.T) {
	env := settings.New(map[string]string{
		"A": "y", "B": "true", "C": "0", "D": "",
	})
	assert.True(t, env.GetBool("A"))
	assert.True(t, env.GetBool("B"))
	assert.False(t, env.GetBool("C"))
	assert.False(t, env.GetBool("UNSET"))
	assert.False(t, env.GetBool("D"))
}

func TestGetIntFallback(t *testing.T) {
	env := settings.New(map[string]string{"N": "42", "BAD": "not-a-number"})
	assert.Equal(t, 42, env.GetInt("N", -1))
	assert.Equal(t, -1, env.GetInt("BAD", -1))
	assert.Equal(t, 7, env.GetInt("MISSING", 7))
}
