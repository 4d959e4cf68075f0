package services_test

import (
	"fmt"

	"csvtojira/models"
)

// fakeTracker はテスト用のトラッカー実装です
// 呼び出しを順番に記録し、検索結果や失敗を差し替えられます
type fakeTracker struct {
	calls []string // 呼び出しログ（例: "create:PROJ-1", "link:A<-B"）

	project    models.Project
	searchFunc func(jql string, limit int) ([]models.IssueRef, error)
	components map[string][]models.Component
	versions   map[string][]models.Version
	users      map[string]string

	createErr error
	updateErr error
	deleteErr map[string]error

	nextIssue     int
	createdFields []models.FieldDelta
	updatedDeltas map[string]models.FieldDelta
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		project:       models.Project{ID: "10000", Key: "PROJ", Name: "テストプロジェクト"},
		components:    make(map[string][]models.Component),
		versions:      make(map[string][]models.Version),
		users:         make(map[string]string),
		deleteErr:     make(map[string]error),
		updatedDeltas: make(map[string]models.FieldDelta),
	}
}

func (f *fakeTracker) record(format string, v ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, v...))
}

func (f *fakeTracker) SearchIssues(jql string, limit int) ([]models.IssueRef, error) {
	f.record("search")
	if f.searchFunc != nil {
		return f.searchFunc(jql, limit)
	}
	return nil, nil
}

func (f *fakeTracker) GetProject(projectKey string) (models.Project, error) {
	f.record("project:%s", projectKey)
	return f.project, nil
}

func (f *fakeTracker) ListComponents(projectID string) ([]models.Component, error) {
	f.record("listComponents")
	return f.components[projectID], nil
}

func (f *fakeTracker) CreateComponent(projectID, name string) (models.Component, error) {
	f.record("createComponent:%s", name)
	component := models.Component{ID: fmt.Sprintf("c%d", len(f.components[projectID])+1), Name: name}
	f.components[projectID] = append(f.components[projectID], component)
	return component, nil
}

func (f *fakeTracker) ListVersions(projectID string) ([]models.Version, error) {
	f.record("listVersions")
	return f.versions[projectID], nil
}

func (f *fakeTracker) CreateVersion(projectID, name string) (models.Version, error) {
	f.record("createVersion:%s", name)
	version := models.Version{ID: fmt.Sprintf("v%d", len(f.versions[projectID])+1), Name: name}
	f.versions[projectID] = append(f.versions[projectID], version)
	return version, nil
}

func (f *fakeTracker) SearchUser(email string) (string, error) {
	f.record("searchUser:%s", email)
	return f.users[email], nil
}

func (f *fakeTracker) CreateIssue(fields models.FieldDelta) (string, error) {
	if f.createErr != nil {
		f.record("createFailed")
		return "", f.createErr
	}
	f.nextIssue++
	key := fmt.Sprintf("PROJ-%d", f.nextIssue)
	f.record("create:%s", key)
	f.createdFields = append(f.createdFields, fields)
	return key, nil
}

func (f *fakeTracker) UpdateIssue(issueKey string, delta models.FieldDelta) error {
	if f.updateErr != nil {
		f.record("updateFailed:%s", issueKey)
		return f.updateErr
	}
	f.record("update:%s", issueKey)
	f.updatedDeltas[issueKey] = delta
	return nil
}

func (f *fakeTracker) DeleteIssue(issueKey string, cascadeSubtasks bool) error {
	if err := f.deleteErr[issueKey]; err != nil {
		f.record("deleteFailed:%s", issueKey)
		return err
	}
	f.record("delete:%s", issueKey)
	return nil
}

func (f *fakeTracker) CreateLink(inwardKey, outwardKey, linkType string) error {
	f.record("link:%s<-%s", inwardKey, outwardKey)
	return nil
}

// callsWithPrefix は指定プレフィックスの呼び出しのみを抜き出します
func (f *fakeTracker) callsWithPrefix(prefix string) []string {
	var result []string
	for _, call := range f.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			result = append(result, call)
		}
	}
	return result
}
