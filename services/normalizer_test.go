package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"csvtojira/models"
	"csvtojira/services"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ISO", "2025-08-09", "2025-08-09"},
		{"日本式スラッシュ", "2025/08/09", "2025-08-09"},
		{"dd/mm/yyyy", "09/08/2025", "2025-08-09"},
		{"dd-mm-yyyy", "09-08-2025", "2025-08-09"},
		{"mm/dd/yyyy (ddとして解釈不能な場合)", "08/25/2025", "2025-08-25"},
		{"dd Mon yyyy", "9 Aug 2025", "2025-08-09"},
		{"dd Month yyyy", "9 August 2025", "2025-08-09"},
		{"Mon dd yyyy", "Aug 9 2025", "2025-08-09"},
		{"Month dd yyyy", "August 9 2025", "2025-08-09"},
		{"ISO部分形式", "2025-8-9", "2025-08-09"},
		{"前後の空白", "  2025-08-09  ", "2025-08-09"},
		{"空文字列", "", ""},
		{"nan", "nan", ""},
		{"NONE", "NONE", ""},
		{"null", "null", ""},
		{"解析不能", "いつか", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.NormalizeDate(tt.input))
		})
	}
}

// 正規化は冪等であること: normalize(normalize(d)) == normalize(d)
func TestNormalizeDateIdempotent(t *testing.T) {
	inputs := []string{
		"2025-08-09", "09/08/2025", "9 Aug 2025", "2025/08/09", "2025-8-9", "", "nan",
	}
	for _, input := range inputs {
		once := services.NormalizeDate(input)
		assert.Equal(t, once, services.NormalizeDate(once), "入力: %q", input)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"空白と空トークンの除去", "a, b , ,c", []string{"a", "b", "c"}},
		{"順序維持・重複除去なし", "x, y, x", []string{"x", "y", "x"}},
		{"単一要素", "Deck", []string{"Deck"}},
		{"空文字列", "", nil},
		{"空白のみ", "   ", nil},
		{"カンマのみ", ",,,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.SplitList(tt.input))
		})
	}
}

func TestParseRow(t *testing.T) {
	record := models.CSVRecord{
		"IssueKey":    "",
		"Summary":     "Build bridge",
		"Labels":      "a, b , ,c",
		"Start date":  "09/08/2025",
		"DueDate":     "2025-12-31",
		"Depends on":  "T-2, 橋の設計",
		"Priority":    "High",
		"Description": "説明文",
	}

	intent, ok := services.ParseRow(record, "PROJ")
	assert.True(t, ok)
	assert.Equal(t, "", intent.MatchKey)
	assert.Equal(t, "Build bridge", intent.MatchSummary)
	assert.Equal(t, "PROJ", intent.ProjectKey)
	assert.Equal(t, []string{"a", "b", "c"}, intent.Labels)
	assert.Equal(t, "2025-08-09", intent.StartDate)
	assert.Equal(t, "2025-12-31", intent.DueDate)
	assert.Equal(t, []string{"T-2", "橋の設計"}, intent.Dependencies)
	assert.Equal(t, "High", intent.Priority)
}

// キーもサマリーもない行はどのイシューにも解決できないため恒久スキップ
func TestParseRowWithoutKeyOrSummary(t *testing.T) {
	record := models.CSVRecord{
		"Labels":   "a,b",
		"Priority": "Low",
	}

	_, ok := services.ParseRow(record, "PROJ")
	assert.False(t, ok)
}

// カラム別名（StartDate / Start date など）はどちらも受け付ける
func TestParseRowColumnAliases(t *testing.T) {
	record := models.CSVRecord{
		"Summary":      "タスクA",
		"StartDate":    "2025-01-01",
		"Due date":     "2025-02-01",
		"Dependencies": "タスクB",
	}

	intent, ok := services.ParseRow(record, "PROJ")
	assert.True(t, ok)
	assert.Equal(t, "2025-01-01", intent.StartDate)
	assert.Equal(t, "2025-02-01", intent.DueDate)
	assert.Equal(t, []string{"タスクB"}, intent.Dependencies)
}
