package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// JIRA API設定
	JiraURL        string
	JiraUser       string
	JiraAPIToken   string
	JiraProjectKey string

	// カスタムフィールドID（インスタンスごとに異なるため設定で渡す）
	StartDateField string
	EpicLinkField  string

	// 入力ファイル
	CSVPath string

	// 実行モード設定
	DryRun       bool
	RequestDelay time.Duration // API呼び出しごとの待機時間（レート制限対策）
	MaxRows      int           // 処理する最大行数（0は無制限）
	Direction    string        // 依存リンクの方向 (blocked_by / blocks)
	NoWipe       bool          // インポート前のプロジェクト全削除をスキップする
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() *Config {
	// .envファイルを読み込む（存在しなくてもエラーにしない）
	_ = godotenv.Load()

	return &Config{
		JiraURL:        strings.TrimRight(os.Getenv("JIRA_URL"), "/"),
		JiraUser:       os.Getenv("JIRA_USER"),
		JiraAPIToken:   os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey: os.Getenv("JIRA_PROJECT_KEY"),
		StartDateField: os.Getenv("JIRA_START_DATE_FIELD"),
		EpicLinkField:  getEnvWithDefault("EPIC_LINK_FIELD", "customfield_10014"),
		CSVPath:        os.Getenv("CSV_PATH"),
		RequestDelay:   getEnvAsDurationWithDefault("REQUEST_DELAY", 100*time.Millisecond),
		Direction:      getEnvWithDefault("DEPENDENCIES_DIRECTION", "blocked_by"),
	}
}

// ValidateCredentials はJIRA認証情報の存在をチェックします
func (c *Config) ValidateCredentials() error {
	var missing []string
	if c.JiraURL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if c.JiraUser == "" {
		missing = append(missing, "JIRA_USER")
	}
	if c.JiraAPIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("必須の環境変数が未設定です: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateProject は認証情報に加えてプロジェクトキーをチェックします
func (c *Config) ValidateProject() error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}
	if c.JiraProjectKey == "" {
		return fmt.Errorf("プロジェクトキーが指定されていません (--project-key または JIRA_PROJECT_KEY)")
	}
	return nil
}

// Validate は実行前の必須設定をすべてチェックします（事前チェックエラーは即時中断）
func (c *Config) Validate() error {
	if err := c.ValidateProject(); err != nil {
		return err
	}
	if c.CSVPath == "" {
		return fmt.Errorf("CSVファイルパスが指定されていません (--csv または CSV_PATH)")
	}
	if c.Direction != "blocked_by" && c.Direction != "blocks" {
		return fmt.Errorf("依存リンクの方向が不正です: %s (blocked_by / blocks)", c.Direction)
	}
	return nil
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を待機時間（秒）として取得
func getEnvAsDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	seconds, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || seconds < 0 {
		return defaultValue
	}

	return time.Duration(seconds * float64(time.Second))
}
