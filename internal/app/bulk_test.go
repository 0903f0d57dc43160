package app

import (
	"strings"
	"testing"
)

func TestParseURLLines(t *testing.T) {
	in := `
# theposterdb
https://theposterdb.com/set/9001

// mediux
  https://mediux.pro/sets/9100

https://theposterdb.com/user/someuploader
`
	got, err := ParseURLLines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseURLLines 失败：%v", err)
	}
	want := []string{
		"https://theposterdb.com/set/9001",
		"https://mediux.pro/sets/9100",
		"https://theposterdb.com/user/someuploader",
	}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 行，实际 %d：%v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第 %d 行：%q != %q", i, got[i], want[i])
		}
	}
}

func TestParseURLLines_Empty(t *testing.T) {
	got, err := ParseURLLines(strings.NewReader("# 只有注释\n\n"))
	if err != nil || len(got) != 0 {
		t.Fatalf("纯注释清单应为空：%v %v", got, err)
	}
}
