package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	URLStatusProcessed = "processed"
	URLStatusSkipped   = "skipped"
	URLStatusFailed    = "failed"
	URLStatusCanceled  = "canceled"
)

const (
	RecordStatusPlanned  = "planned" // dry-run：已解析到目标，未上传
	RecordStatusUploaded = "uploaded"
	RecordStatusSkipped  = "skipped" // 目标不存在，跳过
	RecordStatusFailed   = "failed"
)

const (
	ErrCodeUnsupportedURL       = "unsupported_url"
	ErrCodeFetchFailed          = "fetch_failed"
	ErrCodeNoDataFound          = "no_data_found"
	ErrCodeNotFound             = "not_found"
	ErrCodeUploadFailed         = "upload_failed"
	ErrCodeCanceled             = "canceled"
	ErrCodeConfigNotFound       = "config_not_found"
	ErrCodeConfigInvalid        = "config_invalid"
	ErrCodeConfigMissingPlex    = "config_missing_plex"
	ErrCodeConfigMissingLibrary = "config_missing_library"
)

// BatchReport 是对外稳定输出（stdout JSON / psh-report.json）的结构。
type BatchReport struct {
	DryRun bool `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []URLResult   `json:"items"`
}

type ReportSummary struct {
	URLsProcessed int `json:"urls_processed"`
	URLsSkipped   int `json:"urls_skipped"`
	URLsFailed    int `json:"urls_failed"`
	URLsCanceled  int `json:"urls_canceled"`

	RecordsUploaded int `json:"records_uploaded"`
	RecordsPlanned  int `json:"records_planned"`
	RecordsSkipped  int `json:"records_skipped"`
	RecordsFailed   int `json:"records_failed"`
}

// URLResult 是单个输入 URL 的处理结果。
type URLResult struct {
	URL     string `json:"url"`
	Adapter string `json:"adapter"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Records []RecordResult `json:"records"`
}

// RecordResult 是 URL 内单条 PosterRecord 的结果。
type RecordResult struct {
	Title  string    `json:"title"`
	Kind   MediaKind `json:"kind"`
	Target string    `json:"target"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Uploaded 统计该 URL 下成功上传的记录数。
func (u URLResult) Uploaded() int {
	n := 0
	for _, r := range u.Records {
		if r.Status == RecordStatusUploaded {
			n++
		}
	}
	return n
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 url 字典序；url=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *BatchReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].URL
		b := r.Items[j].URL
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case URLStatusProcessed:
			s.URLsProcessed++
		case URLStatusSkipped:
			s.URLsSkipped++
		case URLStatusFailed:
			s.URLsFailed++
		case URLStatusCanceled:
			s.URLsCanceled++
		}
		for _, rec := range it.Records {
			switch rec.Status {
			case RecordStatusUploaded:
				s.RecordsUploaded++
			case RecordStatusPlanned:
				s.RecordsPlanned++
			case RecordStatusSkipped:
				s.RecordsSkipped++
			case RecordStatusFailed:
				s.RecordsFailed++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r BatchReport) MarshalJSON() ([]byte, error) {
	type Alias BatchReport
	return json.Marshal(Alias(r))
}
