package main

import (
	"testing"
)

func TestParseRunArgs(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		want    runArgs
		wantErr bool
	}{
		{
			name: "仅 URL",
			args: []string{"https://theposterdb.com/set/9001"},
			want: runArgs{URLs: []string{"https://theposterdb.com/set/9001"}},
		},
		{
			name: "多个 URL + apply",
			args: []string{"https://theposterdb.com/set/1", "https://mediux.pro/sets/2", "--apply"},
			want: runArgs{
				URLs:  []string{"https://theposterdb.com/set/1", "https://mediux.pro/sets/2"},
				Apply: true, ApplySet: true,
			},
		},
		{
			name: "apply=false 显式覆盖",
			args: []string{"--apply=false"},
			want: runArgs{Apply: false, ApplySet: true},
		},
		{
			name: "bulk 两种写法之一",
			args: []string{"--bulk", "my_urls.txt"},
			want: runArgs{BulkFile: "my_urls.txt", BulkSet: true},
		},
		{
			name: "bulk 等号写法",
			args: []string{"--bulk=my_urls.txt"},
			want: runArgs{BulkFile: "my_urls.txt", BulkSet: true},
		},
		{name: "bulk 缺少值", args: []string{"--bulk"}, wantErr: true},
		{name: "apply 非法值", args: []string{"--apply=maybe"}, wantErr: true},
		{name: "未知参数", args: []string{"--nope"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRunArgs(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("期望错误，实际成功：%+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			if len(got.URLs) != len(tc.want.URLs) {
				t.Fatalf("URLs 不符合预期：%v", got.URLs)
			}
			for i := range tc.want.URLs {
				if got.URLs[i] != tc.want.URLs[i] {
					t.Errorf("URLs[%d]：%q != %q", i, got.URLs[i], tc.want.URLs[i])
				}
			}
			if got.BulkFile != tc.want.BulkFile || got.BulkSet != tc.want.BulkSet {
				t.Errorf("bulk 不符合预期：%+v", got)
			}
			if got.Apply != tc.want.Apply || got.ApplySet != tc.want.ApplySet {
				t.Errorf("apply 不符合预期：%+v", got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 5); got != "ab..." {
		t.Errorf("truncate 截断结果不符合预期：%q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("不需要截断时应原样返回：%q", got)
	}
}
