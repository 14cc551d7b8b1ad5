// go test github.com/homemade/campmon/sync -v
package sync

import (
	"testing"
)

func TestModifiers(t *testing.T) {
	tests := []struct {
		value     string
		modifiers []string
		expected  string
	}{
		{"07700 900123", []string{"@phone:44"}, "+447700900123"},
		{"+1 650-253-0000", []string{"@phone:44"}, "+16502530000"},
		{"not a number", []string{"@phone:44"}, "not a number"},
		{"", []string{"@phone:44"}, ""},
		{"FR", []string{"@countryName"}, "France"},
		{"Atlantis", []string{"@countryName"}, "Atlantis"},
		{"Mixed Case", []string{"@lower"}, "mixed case"},
		{"Mixed Case", []string{"@upper"}, "MIXED CASE"},
		{"  padded\t", []string{"@trim"}, "padded"},
		{` "quoted" \ value `, []string{"@trim", "@upper"}, `"QUOTED" \ VALUE`},
	}
	for _, test := range tests {
		result := applyModifiers(test.value, test.modifiers)
		if result != test.expected {
			t.Errorf("Expected %q for %q %v but have %q", test.expected, test.value, test.modifiers, result)
		}
	}
}
