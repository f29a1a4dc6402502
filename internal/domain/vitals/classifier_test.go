package vitals

import "testing"

func TestIsTachycardic_BandBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		age       int
		heartRate int
		want      bool
	}{
		// 1-2 years: threshold 151
		{"age 1 at threshold", 1, 151, false},
		{"age 2 at threshold", 2, 151, false},
		{"age 2 above threshold", 2, 152, true},
		{"age 1 above threshold", 1, 160, true},

		// 3 < age <= 4: threshold 137
		{"age 4 at threshold", 4, 137, false},
		{"age 4 above threshold", 4, 138, true},

		// 5 < age <= 7: threshold 133
		{"age 6 at threshold", 6, 133, false},
		{"age 6 above threshold", 6, 134, true},
		{"age 7 above threshold", 7, 134, true},

		// 8 < age <= 11: threshold 130
		{"age 9 at threshold", 9, 130, false},
		{"age 11 above threshold", 11, 131, true},

		// 12 < age <= 15: threshold 119
		{"age 13 at threshold", 13, 119, false},
		{"age 13 above threshold", 13, 120, true},
		{"age 15 above threshold", 15, 120, true},

		// age > 15: threshold 100
		{"age 16 at threshold", 16, 100, false},
		{"age 16 above threshold", 16, 101, true},
		{"adult high rate", 40, 150, true},
		{"adult normal rate", 40, 72, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTachycardic(tt.age, tt.heartRate); got != tt.want {
				t.Errorf("IsTachycardic(%d, %d) = %v, want %v", tt.age, tt.heartRate, got, tt.want)
			}
		})
	}
}

// Ages that fall between bands never classify as tachycardic, no matter
// the rate.
func TestIsTachycardic_GapAges(t *testing.T) {
	for _, age := range []int{0, 3, 5, 8, 12} {
		if IsTachycardic(age, 250) {
			t.Errorf("IsTachycardic(%d, 250) = true, want false for gap age", age)
		}
	}
}

func TestIsTachycardic_NegativeAge(t *testing.T) {
	if IsTachycardic(-1, 250) {
		t.Error("negative age should never be tachycardic")
	}
}
