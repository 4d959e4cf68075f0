package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"csvtojira/api"
	"csvtojira/config"
	"csvtojira/models"
	"csvtojira/services"
	"csvtojira/utils"
)

var cfg *config.Config

// フラグ値の受け皿（環境変数より優先される）
var (
	flagJiraURL   string
	flagJiraUser  string
	flagJiraToken string
	flagProject   string
	flagCSV       string
	flagStartDate string
	flagEpicLink  string
	flagDirection string
	flagSleep     float64
	flagMax       int
	flagDryRun    bool
	flagNoWipe    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		utils.LogError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "csvjira",
		Short:         "CSVのタスクデータをJIRAに同期するツール",
		Long:          "CSVの行からJIRAイシューの作成・フィールド更新・依存リンク作成を行います。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.LoadConfig()
			applyFlags()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagJiraURL, "jira-url", "", "JIRAのベースURL（省略時は JIRA_URL）")
	pf.StringVar(&flagJiraUser, "jira-user", "", "JIRAアカウントのメールアドレス（省略時は JIRA_USER）")
	pf.StringVar(&flagJiraToken, "jira-token", "", "JIRA APIトークン（省略時は JIRA_API_TOKEN）")
	pf.StringVar(&flagProject, "project-key", "", "JIRAプロジェクトキー（省略時は JIRA_PROJECT_KEY）")
	pf.StringVar(&flagCSV, "csv", "", "入力CSVファイルのパス（省略時は CSV_PATH）")
	pf.StringVar(&flagStartDate, "startdate-field", "", "開始日のカスタムフィールドID (例: customfield_12345)")
	pf.StringVar(&flagEpicLink, "epic-link-field", "", "エピックリンクのカスタムフィールドID")
	pf.StringVar(&flagDirection, "dependencies-direction", "", "依存リンクの方向 (blocked_by / blocks)")
	pf.Float64Var(&flagSleep, "sleep", -1, "API呼び出しごとの待機秒数")
	pf.IntVar(&flagMax, "max", 0, "処理する最大行数（テスト用）")
	pf.BoolVar(&flagDryRun, "dry-run", false, "変更を行わず実行内容のみ出力する")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newWipeCmd())
	rootCmd.AddCommand(newAuthCmd())

	return rootCmd
}

// applyFlags は指定されたフラグで環境変数由来の設定を上書きします
func applyFlags() {
	if flagJiraURL != "" {
		cfg.JiraURL = flagJiraURL
	}
	if flagJiraUser != "" {
		cfg.JiraUser = flagJiraUser
	}
	if flagJiraToken != "" {
		cfg.JiraAPIToken = flagJiraToken
	}
	if flagProject != "" {
		cfg.JiraProjectKey = flagProject
	}
	if flagCSV != "" {
		cfg.CSVPath = flagCSV
	}
	if flagStartDate != "" {
		cfg.StartDateField = flagStartDate
	}
	if flagEpicLink != "" {
		cfg.EpicLinkField = flagEpicLink
	}
	if flagDirection != "" {
		cfg.Direction = flagDirection
	}
	if flagSleep >= 0 {
		cfg.RequestDelay = time.Duration(flagSleep * float64(time.Second))
	}
	if flagMax > 0 {
		cfg.MaxRows = flagMax
	}
	cfg.DryRun = flagDryRun
	cfg.NoWipe = flagNoWipe
}

// prepare は事前チェックを行いサービスとCSV行を準備します
func prepare() (*services.SyncService, []models.CSVRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	rows, err := services.ReadCSV(cfg.CSVPath)
	if err != nil {
		return nil, nil, err
	}

	client := api.NewJiraClient(cfg)
	return services.NewSyncService(cfg, client), rows, nil
}

// reportStats は最終サマリーを出力します（行単位のエラーは終了コードに影響しない）
func reportStats(stats models.RunStats) {
	utils.LogInfo("完了: 作成=%d, 更新=%d, リンク=%d, スキップ=%d, エラー=%d, リンクエラー=%d, リンク破棄=%d",
		stats.Created, stats.Updated, stats.Linked, stats.Skipped, stats.Errors, stats.LinkErrors, stats.Dropped)
	if cfg.DryRun {
		utils.LogInfo("ドライランのため変更は行われていません。適用するには --dry-run を外してください。")
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "インポート → 更新 → 依存リンクの全処理を実行する",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, rows, err := prepare()
			if err != nil {
				return err
			}
			stats, err := svc.Run(rows)
			if err != nil {
				return err
			}
			reportStats(stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagNoWipe, "no-wipe", false, "インポート前にプロジェクトの全イシューを削除しない")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "CSVの行からイシューを作成する（既定でプロジェクトを事前に全削除する）",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, rows, err := prepare()
			if err != nil {
				return err
			}
			if !cfg.NoWipe {
				if err := svc.Wipe(); err != nil {
					return err
				}
			}
			stats, err := svc.ImportIssues(rows)
			if err != nil {
				return err
			}
			reportStats(stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagNoWipe, "no-wipe", false, "インポート前にプロジェクトの全イシューを削除しない")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "CSVの行を既存イシューに解決してフィールドと依存リンクを更新する",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, rows, err := prepare()
			if err != nil {
				return err
			}
			stats, err := svc.UpdateIssues(rows)
			if err != nil {
				return err
			}
			reportStats(stats)
			return nil
		},
	}
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "CSVの依存関係列から依存リンクのみを作成する",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, rows, err := prepare()
			if err != nil {
				return err
			}
			stats, err := svc.LinkDependencies(rows)
			if err != nil {
				return err
			}
			reportStats(stats)
			return nil
		},
	}
}

func newWipeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wipe",
		Short: "プロジェクト内の全イシューを削除する（破壊的操作）",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateProject(); err != nil {
				return err
			}
			client := api.NewJiraClient(cfg)
			svc := services.NewSyncService(cfg, client)
			return svc.Wipe()
		},
	}
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "JIRAの認証情報を確認する",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			client := api.NewJiraClient(cfg)
			if err := client.CheckAuth(); err != nil {
				return fmt.Errorf("JIRA認証エラー: %w", err)
			}
			utils.LogInfo("JIRA認証成功: %s", cfg.JiraURL)
			return nil
		},
	}
}
