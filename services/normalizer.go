package services

import (
	"strings"
	"time"

	"csvtojira/models"
)

// dateFormats は日付解析に使うフォーマットの優先順リストです
// 先に一致したものが採用されます（dd/mm を mm/dd より優先）
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
	"01-02-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2006/01/02",
}

// isoFallbackFormats は優先リストで解析できなかった場合に試す寛容なISO形式です
var isoFallbackFormats = []string{
	"2006-1-2",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// absentValues は「値なし」として扱う文字列です（小文字比較）
var absentValues = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
}

// NormalizeDate は様々な形式の日付文字列を yyyy-mm-dd に正規化します
// 解析できない場合と「値なし」を表す文字列の場合は空文字列を返します
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if absentValues[strings.ToLower(s)] {
		return ""
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format("2006-01-02")
		}
	}

	for _, format := range isoFallbackFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format("2006-01-02")
		}
	}

	return ""
}

// SplitList はカンマ区切りの文字列をトークンのリストに分割します
// 各トークンの前後空白を除去し、空トークンは捨て、順序は維持し、重複除去は行いません
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			result = append(result, token)
		}
	}
	return result
}

// columnValue は別名を考慮してカラム値を取得します（先に見つかった非空値を採用）
func columnValue(record models.CSVRecord, names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(record[name]); value != "" {
			return value
		}
	}
	return ""
}

// ParseRow はCSVの1行を型付きの RowIntent に変換します
// イシューキーもサマリーも持たない行はどのイシューにも解決できないため
// ok=false（恒久スキップ）を返します
func ParseRow(record models.CSVRecord, projectKey string) (models.RowIntent, bool) {
	intent := models.RowIntent{
		MatchKey:      columnValue(record, "IssueKey"),
		MatchSummary:  columnValue(record, "Summary"),
		ProjectKey:    projectKey,
		IssueType:     columnValue(record, "Issue Type"),
		StartDate:     NormalizeDate(columnValue(record, "StartDate", "Start date")),
		DueDate:       NormalizeDate(columnValue(record, "DueDate", "Due date")),
		Description:   strings.TrimSpace(record["Description"]),
		Priority:      columnValue(record, "Priority"),
		Labels:        SplitList(record["Labels"]),
		Components:    SplitList(record["Components"]),
		FixVersions:   SplitList(record["FixVersions"]),
		AssigneeEmail: columnValue(record, "AssigneeEmail"),
		EpicKey:       columnValue(record, "EpicKey"),
		ParentKey:     columnValue(record, "ParentKey"),
		Dependencies:  SplitList(columnValue(record, "Dependencies", "Depends on")),
	}

	if intent.MatchKey == "" && intent.MatchSummary == "" {
		return intent, false
	}
	return intent, true
}
