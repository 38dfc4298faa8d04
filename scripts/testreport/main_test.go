package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvents_MergesAnnotations(t *testing.T) {
	pkg := modulePath + "/internal/authz"
	annotations := map[string]Annotation{
		pkg + ".TestGate_Allows":   {Purpose: "allows members", TestCaseID: "AUTHZ-01", Category: "Gate"},
		pkg + ".TestGate_NeverRun": {Category: "Gate"},
	}
	input := strings.Join([]string{
		`{"Action":"run","Package":"` + pkg + `","Test":"TestGate_Allows"}`,
		`{"Action":"pass","Package":"` + pkg + `","Test":"TestGate_Allows","Elapsed":0.01}`,
		`{"Action":"output","Package":"` + pkg + `","Test":"TestGate_Allows/anonymous","Output":"boom\n"}`,
		`{"Action":"fail","Package":"` + pkg + `","Test":"TestGate_Allows/anonymous","Elapsed":0}`,
		`not json`,
	}, "\n")

	results := parseEvents(strings.NewReader(input), annotations)
	require.Len(t, results, 3)

	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Equal(t, "pass", byName["TestGate_Allows"].Status)
	assert.Equal(t, "not run", byName["TestGate_NeverRun"].Status)

	sub := byName["TestGate_Allows/anonymous"]
	assert.Equal(t, "fail", sub.Status)
	assert.Equal(t, "AUTHZ-01", sub.Annotations.TestCaseID)
	assert.Equal(t, "boom\n", sub.Failure)

	s := summarize(results)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Contains(t, markdown(s, "Report"), "## Failures")
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "Gate", category(modulePath+"/internal/authz"))
	assert.Equal(t, "HTTP API", category(modulePath+"/internal/transport/http"))
	assert.Equal(t, "Other", category(modulePath+"/cmd/server"))
}
