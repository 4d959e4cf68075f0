package services

import (
	"fmt"
	"time"

	"csvtojira/config"
	"csvtojira/models"
	"csvtojira/utils"
)

// SyncService はCSV行の処理全体（作成・更新・依存リンク）を駆動します
// 行の処理は1行ずつ逐次実行し、依存リンクは全行の処理完了後にまとめて作成します
type SyncService struct {
	config   *config.Config
	tracker  Tracker
	resolver *Resolver
	delta    *DeltaBuilder
	linker   *Linker

	// この実行で作成したイシュー（サマリー → キー。サブタスクの親解決に使う）
	created map[string]string
}

// NewSyncService は新しい同期サービスを作成します
func NewSyncService(cfg *config.Config, tracker Tracker) *SyncService {
	resolver := NewResolver(tracker)
	return &SyncService{
		config:   cfg,
		tracker:  tracker,
		resolver: resolver,
		delta:    NewDeltaBuilder(tracker, cfg.StartDateField, cfg.EpicLinkField),
		linker:   NewLinker(tracker, resolver, cfg.JiraProjectKey),
		created:  make(map[string]string),
	}
}

// direction は設定された依存リンクの方向を返します
func (s *SyncService) direction() models.LinkDirection {
	if s.config.Direction == string(models.DirectionBlocks) {
		return models.DirectionBlocks
	}
	return models.DirectionBlockedBy
}

// newPendingLink は行のイシューと依存先から方向を考慮した PendingLink を作ります
// blocked_by: 行のイシューが依存先にブロックされる（既定）
// blocks:     行のイシューが依存先をブロックする
func (s *SyncService) newPendingLink(rowIssue, dependency string, rowIndex int) models.PendingLink {
	direction := s.direction()
	if direction == models.DirectionBlocks {
		return models.PendingLink{Blocked: dependency, Blocking: rowIssue, Direction: direction, RowIndex: rowIndex}
	}
	return models.PendingLink{Blocked: rowIssue, Blocking: dependency, Direction: direction, RowIndex: rowIndex}
}

// reachedMax は --max 指定時の協調的な打ち切り判定です（各行の開始前にチェック）
func (s *SyncService) reachedMax(processed int) bool {
	return s.config.MaxRows > 0 && processed >= s.config.MaxRows
}

// Wipe はプロジェクト内の全イシューを削除します（インポート前の破壊的な前処理）
// 削除対象はページネーション検索で全件列挙し、個々の削除失敗は報告のみで続行します
func (s *SyncService) Wipe() error {
	utils.LogInfo("プロジェクト %s の削除対象イシューを検索しています...", s.config.JiraProjectKey)

	jql := fmt.Sprintf(`project = "%s"`, s.config.JiraProjectKey)
	issues, err := s.tracker.SearchIssues(jql, 0)
	if err != nil {
		return fmt.Errorf("削除対象の検索エラー: %w", err)
	}

	if len(issues) == 0 {
		utils.LogInfo("削除対象のイシューはありません")
		return nil
	}

	total := len(issues)
	failed := 0
	utils.LogInfo("プロジェクト %s のイシュー %d 件を削除します...", s.config.JiraProjectKey, total)

	for i, issue := range issues {
		if err := s.tracker.DeleteIssue(issue.Key, true); err != nil {
			utils.LogError("イシュー %s の削除失敗: %v", issue.Key, err)
			failed++
			continue
		}
		if i == 0 || (i+1)%10 == 0 || i+1 == total {
			utils.LogInfo("[%d/%d] %s を削除しました", i+1, total, issue.Key)
		}
	}

	utils.LogInfo("プロジェクト削除完了: 成功=%d, 失敗=%d", total-failed, failed)
	return nil
}

// ImportIssues はCSVの行からイシューを作成します
// Issue Type 列が Task / Sub-task を選択し、Sub-task は直前の Task にぶら下がります
// 依存関係は全行の作成完了後にまとめてリンクします（2段階処理）
func (s *SyncService) ImportIssues(rows []models.CSVRecord) (models.RunStats, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "イシュー作成")

	project, err := s.tracker.GetProject(s.config.JiraProjectKey)
	if err != nil {
		return models.RunStats{}, err
	}

	var stats models.RunStats
	var pendingLinks []models.PendingLink
	currentParent := "" // 直前に作成した Task のサマリー

	utils.LogInfo("イシューの作成を開始します: %d 行", len(rows))

	for i, record := range rows {
		if s.reachedMax(stats.Processed) {
			utils.LogInfo("行数上限 %d に達したため処理を打ち切ります", s.config.MaxRows)
			break
		}

		rowIndex := i + 1
		intent, ok := ParseRow(record, s.config.JiraProjectKey)
		if !ok || intent.MatchSummary == "" {
			utils.LogWarn("行 %d: サマリーがないためスキップします", rowIndex)
			stats.Skipped++
			continue
		}
		stats.Processed++

		issueType := intent.IssueType
		if issueType == "" {
			issueType = "Task"
		}

		fields, err := s.delta.Build(intent, project)
		if err != nil {
			utils.LogError("行 %d: フィールド展開エラー: %v", rowIndex, err)
			stats.Errors++
			continue
		}
		fields["summary"] = intent.MatchSummary
		fields["project"] = map[string]string{"key": s.config.JiraProjectKey}
		fields["issuetype"] = map[string]string{"name": issueType}
		if _, ok := fields["description"]; !ok {
			fields["description"] = ToADF(intent.Description)
		}

		if issueType == "Sub-task" {
			parentKey, ok := s.created[normalizeName(currentParent)]
			if intent.ParentKey != "" {
				// 明示的な親キーがあれば直前のTaskより優先する
				parentKey, ok = intent.ParentKey, true
			}
			if !ok || parentKey == "" {
				utils.LogError("行 %d: サブタスク '%s' の親タスクが見つかりません", rowIndex, intent.MatchSummary)
				stats.Errors++
				continue
			}
			fields["parent"] = map[string]string{"key": parentKey}
		}

		key, err := s.tracker.CreateIssue(fields)
		if err != nil {
			utils.LogError("行 %d: イシュー作成失敗 '%s': %v", rowIndex, intent.MatchSummary, err)
			stats.Errors++
			continue
		}
		stats.Created++

		s.created[normalizeName(intent.MatchSummary)] = key
		s.linker.Register(intent.MatchSummary, key)
		if issueType != "Sub-task" {
			currentParent = intent.MatchSummary
		}

		for _, dep := range intent.Dependencies {
			pendingLinks = append(pendingLinks, s.newPendingLink(key, dep, rowIndex))
		}

		if rowIndex == 1 || rowIndex%10 == 0 || rowIndex == len(rows) {
			utils.LogInfo("[%d/%d] %s を作成しました: %s", rowIndex, len(rows), issueType, key)
		}
	}

	s.applyPendingLinks(pendingLinks, &stats)

	utils.LogInfo("イシュー作成完了: 作成=%d, リンク=%d, スキップ=%d, エラー=%d",
		stats.Created, stats.Linked, stats.Skipped, stats.Errors)
	return stats, nil
}

// UpdateIssues はCSVの各行を既存イシューに解決し、フィールドデルタを適用します
// 依存関係は全行の更新完了後にまとめてリンクします（2段階処理）
func (s *SyncService) UpdateIssues(rows []models.CSVRecord) (models.RunStats, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "イシュー更新")

	project, err := s.tracker.GetProject(s.config.JiraProjectKey)
	if err != nil {
		return models.RunStats{}, err
	}

	var stats models.RunStats
	var pendingLinks []models.PendingLink

	utils.LogInfo("イシューの更新を開始します: %d 行", len(rows))

	for i, record := range rows {
		if s.reachedMax(stats.Processed) {
			utils.LogInfo("行数上限 %d に達したため処理を打ち切ります", s.config.MaxRows)
			break
		}

		rowIndex := i + 1
		intent, ok := ParseRow(record, s.config.JiraProjectKey)
		if !ok {
			utils.LogWarn("行 %d: イシューキーもサマリーもないためスキップします", rowIndex)
			stats.Skipped++
			continue
		}
		stats.Processed++

		resolved, found, err := s.resolver.Resolve(intent)
		if err != nil {
			utils.LogError("行 %d: イシュー解決エラー: %v", rowIndex, err)
			stats.Errors++
			continue
		}
		if !found {
			utils.LogWarn("行 %d: サマリー '%s' に一致するイシューが見つかりません", rowIndex, intent.MatchSummary)
			stats.Skipped++
			continue
		}

		delta, err := s.delta.Build(intent, project)
		if err != nil {
			utils.LogError("行 %d: フィールド展開エラー (%s): %v", rowIndex, resolved.Key, err)
			stats.Errors++
			continue
		}

		// デルタ全体を1回の呼び出しで適用する（部分適用は起こらない）
		if err := s.tracker.UpdateIssue(resolved.Key, delta); err != nil {
			utils.LogError("行 %d: イシュー更新失敗 (%s): %v", rowIndex, resolved.Key, err)
			stats.Errors++
			continue
		}
		stats.Updated++

		for _, dep := range intent.Dependencies {
			pendingLinks = append(pendingLinks, s.newPendingLink(resolved.Key, dep, rowIndex))
		}

		if stats.Updated%10 == 0 {
			utils.LogInfo("[%d] %s まで更新しました", stats.Updated, resolved.Key)
		}
	}

	s.applyPendingLinks(pendingLinks, &stats)

	utils.LogInfo("イシュー更新完了: 更新=%d, リンク=%d, スキップ=%d, エラー=%d, リンクエラー=%d",
		stats.Updated, stats.Linked, stats.Skipped, stats.Errors, stats.LinkErrors)
	return stats, nil
}

// LinkDependencies は依存リンクのみを作成するパスです
// 各行のサマリーと依存先を収集し、全行の収集が終わってからリンクを作成します
func (s *SyncService) LinkDependencies(rows []models.CSVRecord) (models.RunStats, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "依存リンク作成")

	var stats models.RunStats
	var pendingLinks []models.PendingLink

	for i, record := range rows {
		if s.reachedMax(stats.Processed) {
			utils.LogInfo("行数上限 %d に達したため処理を打ち切ります", s.config.MaxRows)
			break
		}

		rowIndex := i + 1
		intent, ok := ParseRow(record, s.config.JiraProjectKey)
		if !ok || len(intent.Dependencies) == 0 {
			continue
		}
		stats.Processed++

		rowIssue := intent.MatchKey
		if rowIssue == "" {
			rowIssue = intent.MatchSummary
		}
		for _, dep := range intent.Dependencies {
			pendingLinks = append(pendingLinks, s.newPendingLink(rowIssue, dep, rowIndex))
		}
	}

	s.applyPendingLinks(pendingLinks, &stats)

	utils.LogInfo("依存リンク作成完了: 対象行=%d, リンク=%d, 破棄=%d, リンクエラー=%d",
		stats.Processed, stats.Linked, stats.Dropped, stats.LinkErrors)
	return stats, nil
}

// applyPendingLinks は蓄積された依存リンクを順に作成します（第2段階）
// 個々の失敗は報告のみで、残りのリンク処理には影響しません
func (s *SyncService) applyPendingLinks(links []models.PendingLink, stats *models.RunStats) {
	if len(links) == 0 {
		utils.LogInfo("作成する依存リンクはありません")
		return
	}

	utils.LogInfo("依存リンクを作成しています: %d 件", len(links))

	for _, link := range links {
		outcome, err := s.linker.Apply(link)
		switch outcome {
		case LinkCreated:
			stats.Linked++
		case LinkDropped:
			stats.Dropped++
		case LinkFailed:
			utils.LogError("行 %d: リンク作成失敗 ('%s' <- '%s'): %v",
				link.RowIndex, link.Blocked, link.Blocking, err)
			stats.LinkErrors++
		}
	}
}

// Run はインポート → 更新 → 依存リンクの全処理を同じCSVに対して順に実行します
func (s *SyncService) Run(rows []models.CSVRecord) (models.RunStats, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "同期処理全体")

	var total models.RunStats

	if !s.config.NoWipe {
		if err := s.Wipe(); err != nil {
			return total, err
		}
	}

	importStats, err := s.ImportIssues(rows)
	if err != nil {
		return total, err
	}
	accumulate(&total, importStats)

	updateStats, err := s.UpdateIssues(rows)
	if err != nil {
		return total, err
	}
	accumulate(&total, updateStats)

	linkStats, err := s.LinkDependencies(rows)
	if err != nil {
		return total, err
	}
	accumulate(&total, linkStats)

	return total, nil
}

// accumulate はフェーズごとのカウンターを合算します
func accumulate(total *models.RunStats, stats models.RunStats) {
	total.Processed += stats.Processed
	total.Created += stats.Created
	total.Updated += stats.Updated
	total.Linked += stats.Linked
	total.Skipped += stats.Skipped
	total.Errors += stats.Errors
	total.LinkErrors += stats.LinkErrors
	total.Dropped += stats.Dropped
}
