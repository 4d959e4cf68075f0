package services

import "csvtojira/models"

// Tracker はコア処理が利用するイシュートラッカーの操作を定義します
// 実体は api.JiraClient で、テストではフェイク実装に差し替えます
type Tracker interface {
	SearchIssues(jql string, limit int) ([]models.IssueRef, error)
	GetProject(projectKey string) (models.Project, error)
	ListComponents(projectID string) ([]models.Component, error)
	CreateComponent(projectID, name string) (models.Component, error)
	ListVersions(projectID string) ([]models.Version, error)
	CreateVersion(projectID, name string) (models.Version, error)
	SearchUser(email string) (string, error)
	CreateIssue(fields models.FieldDelta) (string, error)
	UpdateIssue(issueKey string, delta models.FieldDelta) error
	DeleteIssue(issueKey string, cascadeSubtasks bool) error
	CreateLink(inwardKey, outwardKey, linkType string) error
}
