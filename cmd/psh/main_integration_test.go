package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/PSH/internal/domain"
)

const savedSetHTML = `<!DOCTYPE html>
<html><body>
<div class="row d-flex flex-wrap m-0 w-100 mx-n1 mt-n1">
  <div class="col-6 col-lg-2 p-1">
    <div class="overlay" data-poster-id="610001"></div>
    <a class="text-white" data-toggle="tooltip" data-placement="top" title="Movie" href="/poster/610001">Heat</a>
    <p class="p-0 mb-1 text-break">Heat (1995)</p>
  </div>
</div>
</body></html>`

// 最小的假 Plex 服务器：一个电影库，里面只有 Heat (1995)。
func fakePlex(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer>
  <Directory key="2" type="movie" title="Movies"/>
</MediaContainer>`))
	})
	mux.HandleFunc("/library/sections/2/all", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer>
  <Video ratingKey="201" type="movie" title="Heat" year="1995"/>
</MediaContainer>`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	return httptest.NewServer(mux)
}

func TestCLI_NoTTY_StdoutOnlyBatchReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 BatchReport JSON（进度/配置必须走 stderr 或直接禁用）。
	plexSrv := fakePlex(t)
	defer plexSrv.Close()

	cwd := t.TempDir()
	cfg := `{
  "plex": {"base_url": "` + plexSrv.URL + `", "token": "tok123"},
  "movie_libraries": ["Movies"]
}`
	if err := os.WriteFile(filepath.Join(cwd, "psh.json"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	htmlPath := filepath.Join(cwd, "saved_set.html")
	if err := os.WriteFile(htmlPath, []byte(savedSetHTML), 0o644); err != nil {
		t.Fatalf("写入本地页面失败：%v", err)
	}

	// go test 的 cwd 就是本包目录；先在模块内编译出二进制，再到临时目录运行，
	// 避免 go run 依赖调用方的模块上下文（临时目录里没有 go.mod）。
	pkgDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}

	bin := filepath.Join(t.TempDir(), "psh-test-bin")
	build := exec.Command("go", "build", "-o", bin, ".")
	build.Dir = pkgDir
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("编译失败：%v\n%s", err, out)
	}

	cmd := exec.Command(bin, "run", htmlPath)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rep domain.BatchReport
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("stdout 不是合法的 BatchReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if !rep.DryRun {
		t.Fatalf("默认应为 dry-run")
	}
	if rep.Summary.URLsProcessed != 1 || rep.Summary.RecordsPlanned != 1 {
		t.Fatalf("汇总不符合预期：%+v", rep.Summary)
	}
	// 进度/配置不应出现在 stdout。
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}
	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：urls processed=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
	// dry-run 禁止落盘报告。
	if _, err := os.Stat(filepath.Join(cwd, reportFileName)); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应写入 %s", reportFileName)
	}
}
