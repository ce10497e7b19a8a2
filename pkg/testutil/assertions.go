package testutil

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/repoview/pkg/model"
)

// Names returns the node names in display order.
func Names(nodes []model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

// AssertNames verifies the displayed rows by name.
func AssertNames(t testing.TB, nodes []model.Node, want ...string) {
	t.Helper()
	got := Names(nodes)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected rows %v, got %v", want, got)
	}
}

// AssertLevels verifies the nesting level of every row.
func AssertLevels(t testing.TB, nodes []model.Node, want ...int) {
	t.Helper()
	if len(nodes) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(nodes))
	}
	for i, n := range nodes {
		if n.Level != want[i] {
			t.Errorf("row %d (%s): expected level %d, got %d", i, n.Name, want[i], n.Level)
		}
	}
}

// AssertNoDuplicateURLs verifies that no URL is listed twice.
func AssertNoDuplicateURLs(t testing.TB, nodes []model.Node) {
	t.Helper()
	seen := make(map[string]bool)
	for _, n := range nodes {
		if seen[n.URL] {
			t.Errorf("duplicate row: %s", n.URL)
		}
		seen[n.URL] = true
	}
}

// AssertContiguous verifies that every row below a directory sits directly
// under it: levels never jump by more than one.
func AssertContiguous(t testing.TB, nodes []model.Node) {
	t.Helper()
	prev := -1
	for i, n := range nodes {
		if n.Level > prev+1 {
			t.Errorf("row %d (%s): level %d follows level %d", i, n.Name, n.Level, prev)
		}
		prev = n.Level
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
// Useful for comparing structs that may have different Go representations
// but equivalent JSON forms.
func AssertJSONEqual(t testing.TB, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}
