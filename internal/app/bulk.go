// Package app 聚合面向 CLI 的应用层：URL 清单解析与批处理入口。
package app

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParseURLLines 逐行解析 URL 清单。
// 空行与注释行（# 或 // 开头）跳过；行内前后空白去除。
func ParseURLLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBulkFile 读取 bulk 清单文件并解析出 URL 列表。
func ReadBulkFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseURLLines(f)
}
