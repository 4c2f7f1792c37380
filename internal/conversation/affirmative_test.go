package conversation

import "testing"

func TestIsAffirmativeResponse(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"sim, pode ser", true},
		{"Sim!", true},
		{"PODE SIM", true},
		{"vamos nessa", true},
		{"beleza", true},
		{"com certeza", true},
		{"não, de forma alguma", false},
		{"nao quero", false},
		{"talvez", false},
		{"", false},
		// a negative marker always wins, even alongside a positive one
		{"certo, mas não quero", false},
		{"jamais", false},
		// no marker present falls through to non-affirmative
		{"nonsense", false},
	}
	for _, tc := range cases {
		if got := IsAffirmativeResponse(tc.text); got != tc.want {
			t.Errorf("IsAffirmativeResponse(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
