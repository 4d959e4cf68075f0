package services

import (
	"fmt"
	"strings"

	"csvtojira/models"
)

// DeltaBuilder は RowIntent をトラッカーのネイティブフィールド表現に展開します
// セッションスコープの3つのキャッシュ（ユーザー・バージョン・コンポーネント）を
// 保持し、存在しないコンポーネント/バージョンはその場で作成します
type DeltaBuilder struct {
	tracker        Tracker
	startDateField string // 開始日のカスタムフィールドID（空なら開始日は設定しない）
	epicLinkField  string // エピックリンクのカスタムフィールドID

	// 一度取得した値は実行終了まで正とみなす（リモート側の並行変更は検出しない）
	users      map[string]string                      // email → accountId（空文字列は「該当なし」のキャッシュ）
	components map[string]map[string]models.Component // projectID → 小文字名 → コンポーネント
	versions   map[string]map[string]models.Version   // projectID → 小文字名 → バージョン
}

// NewDeltaBuilder は新しいフィールドデルタビルダーを作成します
func NewDeltaBuilder(tracker Tracker, startDateField, epicLinkField string) *DeltaBuilder {
	return &DeltaBuilder{
		tracker:        tracker,
		startDateField: startDateField,
		epicLinkField:  epicLinkField,
		users:          make(map[string]string),
		components:     make(map[string]map[string]models.Component),
		versions:       make(map[string]map[string]models.Version),
	}
}

// Build は行の意図をネイティブフィールドのデルタに展開します
// 空の論理フィールドはデルタに含めません（「フィールドのクリア」にはならない）
func (b *DeltaBuilder) Build(intent models.RowIntent, project models.Project) (models.FieldDelta, error) {
	delta := make(models.FieldDelta)

	// 日付
	if b.startDateField != "" && intent.StartDate != "" {
		delta[b.startDateField] = intent.StartDate
	}
	if intent.DueDate != "" {
		delta["duedate"] = intent.DueDate
	}

	// 説明（リッチテキストドキュメントに包む）
	if intent.Description != "" {
		delta["description"] = ToADF(intent.Description)
	}

	// 優先度
	if intent.Priority != "" {
		delta["priority"] = map[string]string{"name": intent.Priority}
	}

	// ラベル
	if len(intent.Labels) > 0 {
		delta["labels"] = intent.Labels
	}

	// コンポーネント（名前 → IDリスト。未登録の名前は作成する）
	if len(intent.Components) > 0 {
		refs, err := b.resolveComponents(project.ID, intent.Components)
		if err != nil {
			return nil, err
		}
		delta["components"] = refs
	}

	// 修正バージョン（コンポーネントと同じ扱い）
	if len(intent.FixVersions) > 0 {
		refs, err := b.resolveVersions(project.ID, intent.FixVersions)
		if err != nil {
			return nil, err
		}
		delta["fixVersions"] = refs
	}

	// 担当者（メールアドレス → accountId。該当なしは黙って省略する）
	if intent.AssigneeEmail != "" {
		accountID, err := b.resolveUser(intent.AssigneeEmail)
		if err != nil {
			return nil, err
		}
		if accountID != "" {
			delta["assignee"] = map[string]string{"accountId": accountID}
		}
	}

	// エピックリンク（フィールドIDはインスタンス依存のため設定から渡される）
	if intent.EpicKey != "" {
		delta[b.epicLinkField] = intent.EpicKey
	}

	// サブタスクの親
	if intent.ParentKey != "" {
		delta["parent"] = map[string]string{"key": intent.ParentKey}
	}

	return delta, nil
}

// resolveUser はメールアドレスをアカウントIDに解決します（結果はキャッシュ）
func (b *DeltaBuilder) resolveUser(email string) (string, error) {
	if accountID, ok := b.users[email]; ok {
		return accountID, nil
	}

	accountID, err := b.tracker.SearchUser(email)
	if err != nil {
		return "", fmt.Errorf("担当者解決エラー: %w", err)
	}

	b.users[email] = accountID
	return accountID, nil
}

// resolveComponents はコンポーネント名を {id} 参照のリストに解決します
// プロジェクトに存在しない名前はコンポーネントを作成します（実行内で1回のみ）
func (b *DeltaBuilder) resolveComponents(projectID string, names []string) ([]map[string]string, error) {
	cache, ok := b.components[projectID]
	if !ok {
		existing, err := b.tracker.ListComponents(projectID)
		if err != nil {
			return nil, fmt.Errorf("コンポーネント解決エラー: %w", err)
		}
		cache = make(map[string]models.Component, len(existing))
		for _, c := range existing {
			cache[normalizeName(c.Name)] = c
		}
		b.components[projectID] = cache
	}

	refs := make([]map[string]string, 0, len(names))
	for _, name := range names {
		component, ok := cache[normalizeName(name)]
		if !ok {
			created, err := b.tracker.CreateComponent(projectID, name)
			if err != nil {
				return nil, fmt.Errorf("コンポーネント作成エラー (%s): %w", name, err)
			}
			cache[normalizeName(name)] = created
			component = created
		}
		refs = append(refs, map[string]string{"id": component.ID})
	}
	return refs, nil
}

// resolveVersions はバージョン名を {id} 参照のリストに解決します
func (b *DeltaBuilder) resolveVersions(projectID string, names []string) ([]map[string]string, error) {
	cache, ok := b.versions[projectID]
	if !ok {
		existing, err := b.tracker.ListVersions(projectID)
		if err != nil {
			return nil, fmt.Errorf("バージョン解決エラー: %w", err)
		}
		cache = make(map[string]models.Version, len(existing))
		for _, v := range existing {
			cache[normalizeName(v.Name)] = v
		}
		b.versions[projectID] = cache
	}

	refs := make([]map[string]string, 0, len(names))
	for _, name := range names {
		version, ok := cache[normalizeName(name)]
		if !ok {
			created, err := b.tracker.CreateVersion(projectID, name)
			if err != nil {
				return nil, fmt.Errorf("バージョン作成エラー (%s): %w", name, err)
			}
			cache[normalizeName(name)] = created
			version = created
		}
		refs = append(refs, map[string]string{"id": version.ID})
	}
	return refs, nil
}

// normalizeName はキャッシュ照合用に名前を正規化します（前後空白除去＋小文字化）
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ToADF はプレーンテキストをAtlassian Document Formatの段落に変換します
func ToADF(text string) map[string]interface{} {
	safe := strings.TrimSpace(text)
	if safe == "" {
		safe = " "
	}
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []interface{}{
			map[string]interface{}{
				"type": "paragraph",
				"content": []interface{}{
					map[string]interface{}{
						"type": "text",
						"text": safe,
					},
				},
			},
		},
	}
}
