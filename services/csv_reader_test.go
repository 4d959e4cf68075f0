package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvtojira/services"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTempCSV(t, "Summary,Labels,DueDate\n橋の建設,\"a,b\",2025-12-31\n設計,,\n")

	rows, err := services.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "橋の建設", rows[0]["Summary"])
	assert.Equal(t, "a,b", rows[0]["Labels"])
	assert.Equal(t, "2025-12-31", rows[0]["DueDate"])
	assert.Equal(t, "設計", rows[1]["Summary"])
}

// スプレッドシート出力のBOMは先頭ヘッダー名から取り除かれる
func TestReadCSVStripsBOM(t *testing.T) {
	path := writeTempCSV(t, "\uFEFFSummary,Labels\nタスクA,x\n")

	rows, err := services.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "タスクA", rows[0]["Summary"])
}

// フィールド数が足りない行はヘッダーと重なる範囲だけ読み込まれる
func TestReadCSVShortRow(t *testing.T) {
	path := writeTempCSV(t, "Summary,Labels,Priority\nタスクA,x\n")

	rows, err := services.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "x", rows[0]["Labels"])
	_, ok := rows[0]["Priority"]
	assert.False(t, ok)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := services.ReadCSV(filepath.Join(t.TempDir(), "nothing.csv"))
	assert.Error(t, err)
}

func TestReadCSVHeaderOnly(t *testing.T) {
	path := writeTempCSV(t, "Summary,Labels\n")
	_, err := services.ReadCSV(path)
	assert.Error(t, err)
}
