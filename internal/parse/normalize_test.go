package parse_test

import (
	"testing"

	"github.com/scorevox/scorevox/internal/parse"
)

func TestNormalize_Numerals(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hundreds full", "一百五十三分", "153分"},
		{"hundreds with zero", "一百零五分", "105分"},
		{"hundreds colloquial tens", "三百二", "320"},
		{"hundreds explicit units", "三百零二", "302"},
		{"bare hundred", "一百分", "100分"},
		{"tens", "三十七号", "37号"},
		{"round tens", "九十分", "90分"},
		{"colloquial half hundred", "一百五", "150"},
		{"bare ten", "十分", "10分"},
		{"ten plus digit", "十二号", "12号"},
		{"single digits", "三号五分", "3号5分"},
		{"zero variant", "〇", "0"},
		{"mixed arabic untouched", "3号95分", "3号95分"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parse.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_TraditionalAndFillers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"traditional marker", "三號九十五分", "3号95分"},
		{"financial numerals", "壹佰贰", "100贰"},
		{"filler ge hao", "三个号九十五分", "3号95分"},
		{"traditional surname", "張三十分", "张30分"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parse.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{"一百五十三分", "3号95分", "王小明九十五分", ""}
	for _, in := range inputs {
		once := parse.Normalize(in)
		if twice := parse.Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
