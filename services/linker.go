package services

import (
	"regexp"

	"csvtojira/models"
	"csvtojira/utils"
)

// issueKeyPattern はイシューキーの形式 (例: PROJ-123) を判定します
var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

// LinkOutcome は1件のリンク作成の結果です
type LinkOutcome int

const (
	// LinkCreated はリンクが作成されたことを表します
	LinkCreated LinkOutcome = iota
	// LinkDropped は端点を解決できずリンクを破棄したことを表します
	// （ベストエフォート: 警告のみでエラーにはしない）
	LinkDropped
	// LinkFailed はリモート呼び出しが失敗したことを表します
	LinkFailed
)

// Linker は蓄積された依存リンクの端点を解決してリンクを作成します
// 全行の作成/更新が終わった後にのみ呼び出されます
type Linker struct {
	tracker    Tracker
	resolver   *Resolver
	projectKey string
	created    map[string]string // この実行で作成したイシューの サマリー → キー
}

// NewLinker は新しい依存リンカーを作成します
func NewLinker(tracker Tracker, resolver *Resolver, projectKey string) *Linker {
	return &Linker{
		tracker:    tracker,
		resolver:   resolver,
		projectKey: projectKey,
		created:    make(map[string]string),
	}
}

// Register はこの実行で作成したイシューを端点解決用に登録します
func (l *Linker) Register(summary, key string) {
	if summary != "" && key != "" {
		l.created[normalizeName(summary)] = key
	}
}

// ResolveEndpoint はリンク端点（キーまたはサマリー）をイシューキーに解決します
// 解決順: キー形式ならそのまま → この実行で作成したイシュー → サマリー検索
// 解決できない場合は空文字列を返します
func (l *Linker) ResolveEndpoint(ref string) (string, error) {
	if issueKeyPattern.MatchString(ref) {
		return ref, nil
	}
	if key, ok := l.created[normalizeName(ref)]; ok {
		return key, nil
	}
	return l.resolver.SearchBySummary(l.projectKey, ref)
}

// Apply は1件の依存リンクを作成します
// Blocked がブロックされる側（inward）、Blocking がブロックする側（outward）です
func (l *Linker) Apply(link models.PendingLink) (LinkOutcome, error) {
	blockedKey, err := l.ResolveEndpoint(link.Blocked)
	if err != nil {
		return LinkFailed, err
	}
	blockingKey, err := l.ResolveEndpoint(link.Blocking)
	if err != nil {
		return LinkFailed, err
	}

	if blockedKey == "" || blockingKey == "" {
		utils.LogWarn("行 %d: 依存リンクの端点を解決できないため破棄します ('%s' <- '%s')",
			link.RowIndex, link.Blocked, link.Blocking)
		return LinkDropped, nil
	}

	if err := l.tracker.CreateLink(blockedKey, blockingKey, "Blocks"); err != nil {
		return LinkFailed, err
	}
	return LinkCreated, nil
}
