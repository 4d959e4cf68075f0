package models

// CSVRecord はCSVの1行を表します (ヘッダー名→値のマップ)
type CSVRecord map[string]string

// RowIntent はCSV1行を解析した結果（この行が意図する変更内容）を表します
type RowIntent struct {
	MatchKey     string // 明示的なイシューキー (例: PROJ-123)。空の場合はサマリーで検索
	MatchSummary string // キーがない場合の検索用サマリー
	ProjectKey   string
	IssueType    string // インポート時のイシュータイプ (Task / Sub-task)

	// 論理フィールド（空文字列は「この行に存在しない」を意味する）
	StartDate     string // yyyy-mm-dd に正規化済み
	DueDate       string // yyyy-mm-dd に正規化済み
	Description   string
	Priority      string
	Labels        []string
	Components    []string
	FixVersions   []string
	AssigneeEmail string
	EpicKey       string
	ParentKey     string

	// この行が依存するイシュー（キーまたはサマリー、順序保持・重複除去なし）
	Dependencies []string
}

// ResolvedIssue はリゾルバーが特定したリモートイシューを表します
type ResolvedIssue struct {
	Key       string // イシューキー (PROJECT-123 形式)
	ProjectID string
}

// FieldDelta は1回の更新呼び出しで適用するフィールド変更の集合です
// (ネイティブフィールドID → ネイティブ値)
type FieldDelta map[string]interface{}

// LinkDirection は依存リンクの方向を表します
type LinkDirection string

const (
	// DirectionBlockedBy は「この行のイシューが依存先にブロックされる」方向です
	DirectionBlockedBy LinkDirection = "blocked_by"
	// DirectionBlocks は「この行のイシューが依存先をブロックする」方向です
	DirectionBlocks LinkDirection = "blocks"
)

// PendingLink は全行の処理完了後に作成する依存リンクを表します
// 端点はイシューキーまたはサマリーのまま保持し、リンク作成時に解決します
type PendingLink struct {
	Blocked   string // ブロックされる側（依存元）
	Blocking  string // ブロックする側（依存先）
	Direction LinkDirection
	RowIndex  int // 報告用のCSV行番号（1始まり）
}

// Project はJIRAプロジェクトのメタ情報です
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueRef は検索結果の1件（キーとサマリー）です
type IssueRef struct {
	Key     string
	Summary string
}

// Component はプロジェクトのコンポーネントです
type Component struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Version はプロジェクトのバージョンです
type Version struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RunStats はバッチ全体の結果カウンターです
type RunStats struct {
	Processed  int // 処理を試みた行数
	Created    int // 作成したイシュー数
	Updated    int // 更新したイシュー数
	Linked     int // 作成した依存リンク数
	Skipped    int // 解決できずスキップした行数
	Errors     int // resolve/update/create で失敗した行数
	LinkErrors int // リンク作成で失敗した件数
	Dropped    int // 端点を解決できず破棄したリンク数
}
