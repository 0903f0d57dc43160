package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/John-Robertt/PSH/internal/app"
	"github.com/John-Robertt/PSH/internal/app/batch"
	"github.com/John-Robertt/PSH/internal/catalog"
	"github.com/John-Robertt/PSH/internal/config"
	"github.com/John-Robertt/PSH/internal/domain"
	"github.com/John-Robertt/PSH/internal/infra/fsx"
	"github.com/John-Robertt/PSH/internal/infra/httpx"
	"github.com/John-Robertt/PSH/internal/plex"
	"github.com/John-Robertt/PSH/internal/resolve"
	"github.com/John-Robertt/PSH/internal/source"
	"github.com/John-Robertt/PSH/internal/source/localfile"
	"github.com/John-Robertt/PSH/internal/source/mediux"
	"github.com/John-Robertt/PSH/internal/source/posterdb"
	"github.com/John-Robertt/PSH/internal/upload"
)

// scratchGrace 是上传完成到删除暂存图片之间的等待：
// Plex 端异步读取文件，立即删除会出现“上传成功但图片为空”。
const scratchGrace = 2 * time.Second

const reportFileName = "psh-report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		URLs:     ra.URLs,
		BulkFile: ra.BulkFile,
		BulkSet:  ra.BulkSet,
		Apply:    ra.Apply,
		ApplySet: ra.ApplySet,
	})
	if err != nil {
		emitReport(reportForSetupError(config.Code(err), err, ra))
		return 1
	}

	// URL 来源：命令行优先；没有就读 bulk 清单。
	urls := ra.URLs
	if len(urls) == 0 {
		urls, err = app.ReadBulkFile(filepath.Join(cwdAbs, eff.BulkFile))
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取 URL 清单失败：%v\n", err)
			return 1
		}
		if len(urls) == 0 {
			fmt.Fprintf(os.Stderr, "URL 清单 %q 为空\n", eff.BulkFile)
			return 1
		}
	}

	deps, err := buildDeps(eff)
	if err != nil {
		emitReport(reportForSetupError(classifySetupErr(err), err, ra))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	if interactive {
		deps.Observer = newProgressUI(progressW, eff)
	}

	// Ctrl-C：停止派发新 URL，未开始的记为 canceled。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := batch.Execute(ctx, urls, eff.Concurrency, eff.Apply, deps)

	// apply：报告落盘到 cwd；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(cwdAbs, rep); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", reportFileName, err)
			emitReport(rep)
			return 1
		}
	}

	emitReport(rep)
	if interactive && eff.Apply {
		fmt.Fprintf(progressW, "report: %s\n", filepath.Join(cwdAbs, reportFileName))
	}

	s := rep.Summary
	if s.URLsFailed == 0 && s.URLsCanceled == 0 && s.RecordsFailed == 0 {
		return 0
	}
	return 1
}

// buildDeps 把配置装配成批处理需要的全部协作方。
// 任何一步失败都视为启动期错误（整批终止）。
func buildDeps(eff config.EffectiveConfig) (batch.Deps, error) {
	pages, err := httpx.NewPageClient(eff.ProxyURL)
	if err != nil {
		return batch.Deps{}, err
	}
	images, err := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy)
	if err != nil {
		return batch.Deps{}, err
	}

	reg, err := source.NewRegistry(
		posterdb.Adapter{},
		mediux.Adapter{Filters: eff.MediuxFilters},
		localfile.Adapter{},
	)
	if err != nil {
		return batch.Deps{}, err
	}

	client := plex.NewClient(eff.PlexBaseURL, eff.PlexToken, httpx.NewPlexClient())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tv, err := client.SectionsByName(ctx, eff.TVLibraries)
	if err != nil {
		return batch.Deps{}, fmt.Errorf("tv_libraries 初始化失败：%w", err)
	}
	movie, err := client.SectionsByName(ctx, eff.MovieLibraries)
	if err != nil {
		return batch.Deps{}, fmt.Errorf("movie_libraries 初始化失败：%w", err)
	}

	orch := &upload.Orchestrator{
		Resolver: resolve.Resolver{Mappings: eff.TitleMappings, Cutoff: eff.FuzzyCutoff},
		TV:       asLibraries(tv),
		Movie:    asLibraries(movie),
		Download: upload.NewDownloader(images, "", scratchGrace, eff.SourceDelays),
	}
	return batch.Deps{Registry: reg, Pages: pages, Orch: orch}, nil
}

func asLibraries(secs []*plex.Section) []catalog.Library {
	out := make([]catalog.Library, 0, len(secs))
	for _, s := range secs {
		out = append(out, s)
	}
	return out
}

type runArgs struct {
	URLs []string

	BulkFile string
	BulkSet  bool

	Apply    bool
	ApplySet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--bulk":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--bulk 需要一个文件名")
			}
			i++
			ra.BulkFile = args[i]
			ra.BulkSet = true
		case strings.HasPrefix(a, "--bulk="):
			ra.BulkFile = strings.TrimPrefix(a, "--bulk=")
			ra.BulkSet = true
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ra.URLs = append(ra.URLs, a)
		}
	}

	if ra.BulkSet && strings.TrimSpace(ra.BulkFile) == "" {
		return runArgs{}, fmt.Errorf("--bulk 不能为空")
	}
	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  psh run [url ...] [--bulk 文件] [--apply[=true|false]]

命令：
  run    抓取海报集并匹配/上传到 Plex（默认 dry-run）

使用 "psh run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  psh run [url ...] [--bulk 文件] [--apply[=true|false]]

参数：
  url         ThePosterDB 或 MediUX 的 set/poster/user 页面 URL（可多个）；
              也可以是本地保存的 .html 文件
  --bulk      URL 清单文件（每行一个，支持 # 注释）；未给 url 时生效，
              默认读取配置中的 bulk_file（初始值 bulk_import.txt）
  --apply     真正执行上传（默认 dry-run 只解析与匹配）；
              支持 --apply=false 覆盖配置中的 apply=true
  -h, --help  显示帮助
`)
}

func emitReport(rep domain.BatchReport) {
	s := rep.Summary
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：urls processed=%d skipped=%d failed=%d canceled=%d | records uploaded=%d planned=%d skipped=%d failed=%d\n",
			s.URLsProcessed, s.URLsSkipped, s.URLsFailed, s.URLsCanceled,
			s.RecordsUploaded, s.RecordsPlanned, s.RecordsSkipped, s.RecordsFailed,
		)
		if s.URLsFailed > 0 || s.RecordsFailed > 0 {
			for _, it := range rep.Items {
				if it.Status == domain.URLStatusFailed {
					fmt.Fprintf(os.Stderr, "%s %s: %s\n", anchorOf(it), it.ErrorCode, it.ErrorMsg)
				}
				for _, rec := range it.Records {
					if rec.Status != domain.RecordStatusFailed {
						continue
					}
					fmt.Fprintf(os.Stderr, "%s %s: %s\n", rec.Target, rec.ErrorCode, rec.ErrorMsg)
				}
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 BatchReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rep)
	fmt.Fprintf(os.Stderr, "完成：urls processed=%d skipped=%d failed=%d canceled=%d | records uploaded=%d planned=%d skipped=%d failed=%d\n",
		s.URLsProcessed, s.URLsSkipped, s.URLsFailed, s.URLsCanceled,
		s.RecordsUploaded, s.RecordsPlanned, s.RecordsSkipped, s.RecordsFailed,
	)
}

func anchorOf(it domain.URLResult) string {
	if it.URL != "" {
		return it.URL
	}
	return "<setup>"
}

// reportForSetupError 把启动期错误（配置/Plex 初始化）包成一份只含
// 合成条目的报告，保证非 TTY 下 stdout 的 JSON 契约不因早期失败而破坏。
func reportForSetupError(code string, err error, ra runArgs) domain.BatchReport {
	now := time.Now().UTC()
	rep := domain.BatchReport{
		DryRun:     !(ra.ApplySet && ra.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.URLResult{{
			Status:    domain.URLStatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			Records:   []domain.RecordResult{},
		}},
	}
	rep.Finalize()
	return rep
}

func classifySetupErr(err error) string {
	if errors.Is(err, plex.ErrLibraryNotFound) {
		return domain.ErrCodeConfigMissingLibrary
	}
	return domain.ErrCodeFetchFailed
}

func writeReportFile(dir string, rep domain.BatchReport) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(dir, reportFileName, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
