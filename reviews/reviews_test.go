package reviews

import (
	"testing"

	"trattoria/models"
	"trattoria/utils"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		ratings []int
		avg     float64
		n       int
	}{
		{nil, 0, 0},
		{[]int{5}, 5, 1},
		{[]int{4, 5}, 4.5, 2},
		{[]int{5, 4, 4}, 4.3, 3},
		{[]int{1, 2, 2}, 1.7, 3},
	}
	for _, tc := range tests {
		avg, n := Summarize(tc.ratings)
		if avg != tc.avg || n != tc.n {
			t.Errorf("Summarize(%v) = %v, %d; want %v, %d", tc.ratings, avg, n, tc.avg, tc.n)
		}
	}
}

func TestReviewValidation(t *testing.T) {
	tests := []struct {
		name string
		in   models.Review
		msg  string
	}{
		{"ok", models.Review{Rating: 4, Comment: "lovely"}, ""},
		{"zero rating", models.Review{Comment: "meh"}, "rating is required"},
		{"rating too high", models.Review{Rating: 6, Comment: "wow"}, "rating must be at most 5"},
		{"no comment", models.Review{Rating: 3}, "comment is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := utils.Validate(tc.in)
			if tc.msg == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.msg {
				t.Fatalf("got %v, want %q", err, tc.msg)
			}
		})
	}
}
