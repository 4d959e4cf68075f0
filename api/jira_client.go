package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"csvtojira/config"
	"csvtojira/models"
	"csvtojira/utils"
)

// searchPageSize はページネーション検索の1ページあたりの件数です
const searchPageSize = 100

// retryInterval は一時的な通信エラー時の再試行までの待機時間です
const retryInterval = 1 * time.Second

// maxRetries は変更系API呼び出しの最大再試行回数です
const maxRetries = 1

// APIError はJIRA APIが非成功ステータスを返したことを表します
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("JIRA APIエラー %d: %s", e.StatusCode, e.Body)
}

// JiraClient はJIRA REST API (v3) とのやり取りを処理します
// ドライラン時はすべての変更系呼び出しがペイロードの出力のみを行います
type JiraClient struct {
	config *config.Config
	client *http.Client
	drySeq int // ドライラン時に払い出すプレースホルダーIDの連番
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config) *JiraClient {
	return &JiraClient{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// throttle はAPI呼び出し後のレート制限対策の待機を行います
// 呼び出しの成否にかかわらず一律に適用されます
func (j *JiraClient) throttle() {
	if j.config.RequestDelay > 0 {
		time.Sleep(j.config.RequestDelay)
	}
}

// doOnce は1回のHTTPリクエストを実行しレスポンスボディを返します
func (j *JiraClient) doOnce(method, path string, params url.Values, payload interface{}) ([]byte, error) {
	reqURL := j.config.JiraURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("JSONエンコードエラー: %w", err)
		}
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraUser, j.config.JiraAPIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	j.throttle()
	if err != nil {
		return nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// doMutate は変更系リクエストを有界リトライ付きで実行します
// 再試行するのは通信レベルの失敗のみで、HTTPエラーステータスは即時失敗です
func (j *JiraClient) doMutate(method, path string, params url.Values, payload interface{}) ([]byte, error) {
	var respBody []byte

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxRetries)
	err := backoff.Retry(func() error {
		var err error
		respBody, err = j.doOnce(method, path, params, payload)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return backoff.Permanent(err)
		}
		utils.LogWarn("通信エラーのため再試行します: %v", err)
		return err
	}, policy)

	return respBody, err
}

// echoDryRun はドライラン時に実行予定の操作を出力します
func (j *JiraClient) echoDryRun(method, path string, payload interface{}) {
	if payload == nil {
		utils.LogDryRun("%s %s", method, path)
		return
	}
	payloadBytes, _ := json.Marshal(payload)
	utils.LogDryRun("%s %s :: %s", method, path, string(payloadBytes))
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth() error {
	if _, err := j.doOnce("GET", "/rest/api/3/myself", nil, nil); err != nil {
		return fmt.Errorf("認証失敗: %w", err)
	}
	return nil
}

// GetProject はプロジェクトのメタ情報を取得します
func (j *JiraClient) GetProject(projectKey string) (models.Project, error) {
	respBody, err := j.doOnce("GET", "/rest/api/3/project/"+projectKey, nil, nil)
	if err != nil {
		return models.Project{}, fmt.Errorf("プロジェクト取得エラー (%s): %w", projectKey, err)
	}

	var project models.Project
	if err := json.Unmarshal(respBody, &project); err != nil {
		return models.Project{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return project, nil
}

// searchResponse はイシュー検索のレスポンスです
type searchResponse struct {
	Total  int `json:"total"`
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
		} `json:"fields"`
	} `json:"issues"`
}

// SearchIssues はJQLでイシューを検索します
// limit > 0 の場合は先頭ページのみをその件数で取得し、
// limit == 0 の場合は全ページを巡回してすべての結果を返します
func (j *JiraClient) SearchIssues(jql string, limit int) ([]models.IssueRef, error) {
	var result []models.IssueRef
	startAt := 0

	for {
		maxResults := searchPageSize
		if limit > 0 {
			maxResults = limit
		}

		payload := map[string]interface{}{
			"jql":        jql,
			"startAt":    startAt,
			"maxResults": maxResults,
			"fields":     []string{"summary"},
		}

		// 検索は読み取り専用のためドライランでも実行する
		respBody, err := j.doOnce("POST", "/rest/api/3/search", nil, payload)
		if err != nil {
			return nil, fmt.Errorf("イシュー検索エラー: %w", err)
		}

		var page searchResponse
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
		}

		for _, issue := range page.Issues {
			result = append(result, models.IssueRef{Key: issue.Key, Summary: issue.Fields.Summary})
		}

		if limit > 0 || len(page.Issues) == 0 || startAt+len(page.Issues) >= page.Total {
			break
		}
		startAt += len(page.Issues)
	}

	return result, nil
}

// ListComponents はプロジェクトのコンポーネント一覧を取得します
func (j *JiraClient) ListComponents(projectID string) ([]models.Component, error) {
	respBody, err := j.doOnce("GET", "/rest/api/3/project/"+projectID+"/components", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("コンポーネント一覧取得エラー: %w", err)
	}

	var components []models.Component
	if err := json.Unmarshal(respBody, &components); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return components, nil
}

// CreateComponent はプロジェクトに新しいコンポーネントを作成します
func (j *JiraClient) CreateComponent(projectID, name string) (models.Component, error) {
	payload := map[string]interface{}{
		"name":      name,
		"projectId": projectID,
	}

	if j.config.DryRun {
		j.echoDryRun("POST", "/rest/api/3/component", payload)
		j.drySeq++
		return models.Component{ID: fmt.Sprintf("dry-component-%d", j.drySeq), Name: name}, nil
	}

	respBody, err := j.doMutate("POST", "/rest/api/3/component", nil, payload)
	if err != nil {
		return models.Component{}, fmt.Errorf("コンポーネント作成エラー (%s): %w", name, err)
	}

	var component models.Component
	if err := json.Unmarshal(respBody, &component); err != nil {
		return models.Component{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return component, nil
}

// ListVersions はプロジェクトのバージョン一覧を取得します
func (j *JiraClient) ListVersions(projectID string) ([]models.Version, error) {
	respBody, err := j.doOnce("GET", "/rest/api/3/project/"+projectID+"/versions", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("バージョン一覧取得エラー: %w", err)
	}

	var versions []models.Version
	if err := json.Unmarshal(respBody, &versions); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return versions, nil
}

// CreateVersion はプロジェクトに新しいバージョンを作成します
func (j *JiraClient) CreateVersion(projectID, name string) (models.Version, error) {
	payload := map[string]interface{}{
		"name":      name,
		"projectId": projectID,
	}

	if j.config.DryRun {
		j.echoDryRun("POST", "/rest/api/3/version", payload)
		j.drySeq++
		return models.Version{ID: fmt.Sprintf("dry-version-%d", j.drySeq), Name: name}, nil
	}

	respBody, err := j.doMutate("POST", "/rest/api/3/version", nil, payload)
	if err != nil {
		return models.Version{}, fmt.Errorf("バージョン作成エラー (%s): %w", name, err)
	}

	var version models.Version
	if err := json.Unmarshal(respBody, &version); err != nil {
		return models.Version{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return version, nil
}

// SearchUser はメールアドレスからアカウントIDを検索します
// 見つからない場合は空文字列を返します（エラーにしない）
func (j *JiraClient) SearchUser(email string) (string, error) {
	params := url.Values{}
	params.Set("query", email)

	respBody, err := j.doOnce("GET", "/rest/api/3/user/search", params, nil)
	if err != nil {
		return "", fmt.Errorf("ユーザー検索エラー (%s): %w", email, err)
	}

	var users []struct {
		AccountID string `json:"accountId"`
	}
	if err := json.Unmarshal(respBody, &users); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	if len(users) == 0 {
		return "", nil
	}
	return users[0].AccountID, nil
}

// CreateIssue はJIRAイシューを作成しイシューキーを返します
func (j *JiraClient) CreateIssue(fields models.FieldDelta) (string, error) {
	payload := map[string]interface{}{"fields": fields}

	if j.config.DryRun {
		j.echoDryRun("POST", "/rest/api/3/issue", payload)
		j.drySeq++
		return fmt.Sprintf("DRY-%d", j.drySeq), nil
	}

	respBody, err := j.doMutate("POST", "/rest/api/3/issue", nil, payload)
	if err != nil {
		return "", fmt.Errorf("イシュー作成エラー: %w", err)
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	if result.Key == "" {
		return "", fmt.Errorf("イシューキーが見つかりません")
	}
	return result.Key, nil
}

// UpdateIssue はイシューのフィールドを1回の呼び出しで更新します
func (j *JiraClient) UpdateIssue(issueKey string, delta models.FieldDelta) error {
	payload := map[string]interface{}{"fields": delta}

	if j.config.DryRun {
		j.echoDryRun("PUT", "/rest/api/3/issue/"+issueKey, payload)
		return nil
	}

	if _, err := j.doMutate("PUT", "/rest/api/3/issue/"+issueKey, nil, payload); err != nil {
		return fmt.Errorf("イシュー更新エラー (%s): %w", issueKey, err)
	}
	return nil
}

// DeleteIssue はイシューを削除します
func (j *JiraClient) DeleteIssue(issueKey string, cascadeSubtasks bool) error {
	params := url.Values{}
	if cascadeSubtasks {
		params.Set("deleteSubtasks", "true")
	}

	if j.config.DryRun {
		j.echoDryRun("DELETE", "/rest/api/3/issue/"+issueKey, nil)
		return nil
	}

	if _, err := j.doMutate("DELETE", "/rest/api/3/issue/"+issueKey, params, nil); err != nil {
		return fmt.Errorf("イシュー削除エラー (%s): %w", issueKey, err)
	}
	return nil
}

// CreateLink はイシュー間の依存リンクを作成します
// inward側が「ブロックされる」イシュー、outward側が「ブロックする」イシューです
func (j *JiraClient) CreateLink(inwardKey, outwardKey, linkType string) error {
	payload := map[string]interface{}{
		"type":         map[string]string{"name": linkType},
		"inwardIssue":  map[string]string{"key": inwardKey},
		"outwardIssue": map[string]string{"key": outwardKey},
	}

	if j.config.DryRun {
		j.echoDryRun("POST", "/rest/api/3/issueLink", payload)
		return nil
	}

	if _, err := j.doMutate("POST", "/rest/api/3/issueLink", nil, payload); err != nil {
		return fmt.Errorf("リンク作成エラー (%s <- %s): %w", inwardKey, outwardKey, err)
	}
	return nil
}
