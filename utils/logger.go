package utils

import (
	"log"
	"os"
	"time"
)

var (
	// InfoLogger は情報レベルのログを出力します
	InfoLogger *log.Logger
	// WarnLogger は警告レベルのログを出力します
	WarnLogger *log.Logger
	// ErrorLogger はエラーレベルのログを出力します
	ErrorLogger *log.Logger
	// DryRunLogger はドライラン時に実行予定の操作を出力します
	DryRunLogger *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime)
	DryRunLogger = log.New(os.Stdout, "DRY-RUN: ", log.Ldate|log.Ltime)
}

// LogInfo は情報レベルのメッセージをログに記録します
func LogInfo(format string, v ...interface{}) {
	InfoLogger.Printf(format, v...)
}

// LogWarn は警告レベルのメッセージをログに記録します
func LogWarn(format string, v ...interface{}) {
	WarnLogger.Printf(format, v...)
}

// LogError はエラーレベルのメッセージをログに記録します
func LogError(format string, v ...interface{}) {
	ErrorLogger.Printf(format, v...)
}

// LogDryRun はドライラン時に実行されるはずだった操作を記録します
func LogDryRun(format string, v ...interface{}) {
	DryRunLogger.Printf(format, v...)
}

// TrackTime は処理の実行時間を計測して出力するユーティリティです
func TrackTime(start time.Time, name string) {
	elapsed := time.Since(start)
	LogInfo("%s 完了時間: %s", name, elapsed)
}
