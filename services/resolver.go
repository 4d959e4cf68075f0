package services

import (
	"fmt"
	"strings"

	"csvtojira/models"
)

// resolverMaxResults はサマリー検索で取得する最大件数です
const resolverMaxResults = 5

// Resolver は RowIntent をリモートイシューに対応付けます
type Resolver struct {
	tracker Tracker
}

// NewResolver は新しいリゾルバーを作成します
func NewResolver(tracker Tracker) *Resolver {
	return &Resolver{tracker: tracker}
}

// Resolve は行の対応イシューを特定します
// 戻り値の ok=false はスキップ（恒久的な未解決）を表し、エラーではありません
// 検索自体の失敗はその行のエラーとして返します
func (r *Resolver) Resolve(intent models.RowIntent) (models.ResolvedIssue, bool, error) {
	// 明示的なキーがあればそのまま使う（存在確認はしない。
	// 存在しない場合は後続の更新呼び出しが失敗した時点で発覚する）
	if intent.MatchKey != "" {
		return models.ResolvedIssue{Key: intent.MatchKey}, true, nil
	}

	if intent.MatchSummary == "" {
		return models.ResolvedIssue{}, false, nil
	}

	key, err := r.SearchBySummary(intent.ProjectKey, intent.MatchSummary)
	if err != nil {
		return models.ResolvedIssue{}, false, err
	}
	if key == "" {
		return models.ResolvedIssue{}, false, nil
	}
	return models.ResolvedIssue{Key: key}, true, nil
}

// SearchBySummary はサマリーでプロジェクト内のイシューを検索します
// サマリーが完全一致（大文字小文字無視・前後空白無視）する結果を最優先し、
// なければ先頭の結果を、結果が空なら空文字列を返します
func (r *Resolver) SearchBySummary(projectKey, summary string) (string, error) {
	jql := fmt.Sprintf(`project = "%s" AND summary ~ "\"%s\"" ORDER BY created DESC`,
		projectKey, escapeJQL(summary))

	issues, err := r.tracker.SearchIssues(jql, resolverMaxResults)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(strings.TrimSpace(summary))
	for _, issue := range issues {
		if strings.ToLower(strings.TrimSpace(issue.Summary)) == want {
			return issue.Key, nil
		}
	}

	if len(issues) > 0 {
		return issues[0].Key, nil
	}
	return "", nil
}

// escapeJQL はJQL文字列リテラル内の引用符とバックスラッシュをエスケープします
func escapeJQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
