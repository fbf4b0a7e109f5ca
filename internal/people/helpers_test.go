package people

import (
	"encoding/json"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	assert.NilError(t, err)
	return string(data)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
