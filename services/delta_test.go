package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvtojira/models"
	"csvtojira/services"
)

func testProject() models.Project {
	return models.Project{ID: "10000", Key: "PROJ"}
}

// 空の論理フィールドはデルタに含めない（「フィールドのクリア」にしない）
func TestBuildOmitsEmptyFields(t *testing.T) {
	tracker := newFakeTracker()
	builder := services.NewDeltaBuilder(tracker, "customfield_12345", "customfield_10014")

	delta, err := builder.Build(models.RowIntent{MatchSummary: "タスクA"}, testProject())
	require.NoError(t, err)
	assert.Empty(t, delta)
}

func TestBuildFieldShapes(t *testing.T) {
	tracker := newFakeTracker()
	tracker.users["taro@example.com"] = "acct-123"
	builder := services.NewDeltaBuilder(tracker, "customfield_12345", "customfield_10014")

	intent := models.RowIntent{
		MatchSummary:  "タスクA",
		StartDate:     "2025-01-01",
		DueDate:       "2025-02-01",
		Description:   "橋を建設する",
		Priority:      "High",
		Labels:        []string{"a", "b"},
		AssigneeEmail: "taro@example.com",
		EpicKey:       "PROJ-100",
		ParentKey:     "PROJ-200",
	}

	delta, err := builder.Build(intent, testProject())
	require.NoError(t, err)

	assert.Equal(t, "2025-01-01", delta["customfield_12345"])
	assert.Equal(t, "2025-02-01", delta["duedate"])
	assert.Equal(t, map[string]string{"name": "High"}, delta["priority"])
	assert.Equal(t, []string{"a", "b"}, delta["labels"])
	assert.Equal(t, map[string]string{"accountId": "acct-123"}, delta["assignee"])
	assert.Equal(t, "PROJ-100", delta["customfield_10014"])
	assert.Equal(t, map[string]string{"key": "PROJ-200"}, delta["parent"])

	// 説明はリッチテキストドキュメントに包まれる
	doc, ok := delta["description"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "doc", doc["type"])
	assert.Equal(t, 1, doc["version"])
}

// 開始日フィールドIDが未設定なら開始日はデルタに含めない
func TestBuildStartDateRequiresFieldID(t *testing.T) {
	tracker := newFakeTracker()
	builder := services.NewDeltaBuilder(tracker, "", "customfield_10014")

	delta, err := builder.Build(models.RowIntent{StartDate: "2025-01-01"}, testProject())
	require.NoError(t, err)
	assert.NotContains(t, delta, "customfield_12345")
	assert.NotContains(t, delta, "duedate")
}

// 未登録のコンポーネントは1回だけ作成され、同一バッチ内の後続行では再利用される
func TestBuildComponentCreatedOncePerRun(t *testing.T) {
	tracker := newFakeTracker()
	builder := services.NewDeltaBuilder(tracker, "", "customfield_10014")

	delta1, err := builder.Build(models.RowIntent{Components: []string{"Deck"}}, testProject())
	require.NoError(t, err)
	delta2, err := builder.Build(models.RowIntent{Components: []string{"Deck"}}, testProject())
	require.NoError(t, err)

	creates := tracker.callsWithPrefix("createComponent")
	require.Len(t, creates, 1, "コンポーネント作成はバッチ内で1回のみ")
	assert.Equal(t, "createComponent:Deck", creates[0])

	// 2回目の参照は同じIDを指す
	assert.Equal(t, delta1["components"], delta2["components"])

	// コンポーネント一覧の取得も1回のみ（キャッシュされる）
	assert.Len(t, tracker.callsWithPrefix("listComponents"), 1)
}

// 既存コンポーネントは大文字小文字を無視して照合される
func TestBuildComponentCaseInsensitiveMatch(t *testing.T) {
	tracker := newFakeTracker()
	tracker.components["10000"] = []models.Component{{ID: "c99", Name: "Deck"}}
	builder := services.NewDeltaBuilder(tracker, "", "customfield_10014")

	delta, err := builder.Build(models.RowIntent{Components: []string{"deck"}}, testProject())
	require.NoError(t, err)

	assert.Empty(t, tracker.callsWithPrefix("createComponent"))
	assert.Equal(t, []map[string]string{{"id": "c99"}}, delta["components"])
}

// 未登録のバージョンはその場で作成される
func TestBuildVersionCreatedOnDemand(t *testing.T) {
	tracker := newFakeTracker()
	tracker.versions["10000"] = []models.Version{{ID: "v10", Name: "v1.0"}}
	builder := services.NewDeltaBuilder(tracker, "", "customfield_10014")

	delta, err := builder.Build(models.RowIntent{FixVersions: []string{"V1.0", "v2.0"}}, testProject())
	require.NoError(t, err)

	creates := tracker.callsWithPrefix("createVersion")
	require.Len(t, creates, 1)
	assert.Equal(t, "createVersion:v2.0", creates[0])

	refs, ok := delta["fixVersions"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, refs, 2)
	assert.Equal(t, "v10", refs[0]["id"])
}

// 担当者が見つからない場合はエラーにせず assignee を省略する
func TestBuildAssigneeBestEffort(t *testing.T) {
	tracker := newFakeTracker()
	builder := services.NewDeltaBuilder(tracker, "", "customfield_10014")

	delta, err := builder.Build(models.RowIntent{AssigneeEmail: "unknown@example.com"}, testProject())
	require.NoError(t, err)
	assert.NotContains(t, delta, "assignee")
}

// ユーザー検索の結果はキャッシュされる（該当なしも含めて）
func TestBuildUserLookupCached(t *testing.T) {
	tracker := newFakeTracker()
	builder := services.NewDeltaBuilder(tracker, "", "customfield_10014")

	intent := models.RowIntent{AssigneeEmail: "unknown@example.com"}
	_, err := builder.Build(intent, testProject())
	require.NoError(t, err)
	_, err = builder.Build(intent, testProject())
	require.NoError(t, err)

	assert.Len(t, tracker.callsWithPrefix("searchUser"), 1)
}
