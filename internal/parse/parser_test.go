package parse_test

import (
	"testing"

	"github.com/scorevox/scorevox/internal/parse"
)

func TestParse_SingleEntries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want parse.Entry
	}{
		{
			"sequence and score",
			"3号95分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "3", Score: 95},
		},
		{
			"spoken numerals",
			"三号九十五分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "3", Score: 95},
		},
		{
			"ordinal prefix",
			"第12号学生88分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "12", Score: 88},
		},
		{
			"name and score",
			"王小明95分",
			parse.Entry{Kind: parse.KindName, Identifier: "王小明", Score: 95},
		},
		{
			"decimal score",
			"5号87.5分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "5", Score: 87.5},
		},
		{
			"score without fen marker",
			"7号90",
			parse.Entry{Kind: parse.KindSequence, Identifier: "7", Score: 90},
		},
		{
			"sequence wins over name",
			"李华3号95分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "3", Score: 95},
		},
		{
			"name with bare trailing number",
			"张三90",
			parse.Entry{Kind: parse.KindName, Identifier: "张三", Score: 90},
		},
		{
			"zero score",
			"4号0分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "4", Score: 0},
		},
		{
			"full marks",
			"2号100分",
			parse.Entry{Kind: parse.KindSequence, Identifier: "2", Score: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parse.Parse(tt.in)
			if !ok {
				t.Fatalf("Parse(%q) returned no entry", tt.in)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Rejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no numbers", "今天天气不错"},
		{"score above range", "3号150分"},
		{"negative impossible but large", "3号999分"},
		{"stoplist word as only name", "学生95分"},
		{"filler only", "成绩分数"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got, ok := parse.Parse(tt.in); ok {
				t.Errorf("Parse(%q) = %+v, want no entry", tt.in, got)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []parse.Entry
	}{
		{
			"run-on pairs without separators",
			"1号10分2号20分3号30分",
			[]parse.Entry{
				{Kind: parse.KindSequence, Identifier: "1", Score: 10},
				{Kind: parse.KindSequence, Identifier: "2", Score: 20},
				{Kind: parse.KindSequence, Identifier: "3", Score: 30},
			},
		},
		{
			"comma separated",
			"1号85分，2号90分",
			[]parse.Entry{
				{Kind: parse.KindSequence, Identifier: "1", Score: 85},
				{Kind: parse.KindSequence, Identifier: "2", Score: 90},
			},
		},
		{
			"names split on separators",
			"王小明95分，李华88分",
			[]parse.Entry{
				{Kind: parse.KindName, Identifier: "王小明", Score: 95},
				{Kind: parse.KindName, Identifier: "李华", Score: 88},
			},
		},
		{
			"out of range pair skipped",
			"1号85分2号150分3号90分",
			[]parse.Entry{
				{Kind: parse.KindSequence, Identifier: "1", Score: 85},
				{Kind: parse.KindSequence, Identifier: "3", Score: 90},
			},
		},
		{
			"single fallback",
			"第8号学生73分",
			[]parse.Entry{
				{Kind: parse.KindSequence, Identifier: "8", Score: 73},
			},
		},
		{
			"decimal score survives the separator split",
			"王小明87.5分，李华90分",
			[]parse.Entry{
				{Kind: parse.KindName, Identifier: "王小明", Score: 87.5},
				{Kind: parse.KindName, Identifier: "李华", Score: 90},
			},
		},
		{
			"period separator does not eat decimals",
			"5号87.5分。6号90分",
			[]parse.Entry{
				{Kind: parse.KindSequence, Identifier: "5", Score: 87.5},
				{Kind: parse.KindSequence, Identifier: "6", Score: 90},
			},
		},
		{
			"nothing extractable",
			"谢谢大家",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parse.ParseMultiple(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseMultiple(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
