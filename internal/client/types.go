package client

import "encoding/json"

// Credential identifies one Grafana instance.
type Credential struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// Folder is a Grafana folder. UID is the portable key; ID is assigned by
// each instance and must not cross instances.
type Folder struct {
	ID        int64  `json:"id,omitempty"`
	UID       string `json:"uid"`
	Title     string `json:"title"`
	ParentUID string `json:"parentUid,omitempty"`
}

// Dashboard is a Grafana dashboard. Data holds the raw panel/layout JSON as
// returned by the detail endpoint; search results carry only the summary
// fields and leave Data nil.
type Dashboard struct {
	ID        int64           `json:"id,omitempty"`
	UID       string          `json:"uid"`
	Title     string          `json:"title"`
	FolderUID string          `json:"folderUid,omitempty"`
	Version   int64           `json:"version,omitempty"`
	Data      json.RawMessage `json:"dashboard,omitempty"`
}

// Datasource is a Grafana datasource. SecureJSONData is write-only on the
// Grafana API: reads never echo it back.
type Datasource struct {
	ID             int64             `json:"id,omitempty"`
	OrgID          int64             `json:"orgId,omitempty"`
	UID            string            `json:"uid"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	URL            string            `json:"url,omitempty"`
	Access         string            `json:"access,omitempty"`
	IsDefault      bool              `json:"isDefault,omitempty"`
	JSONData       map[string]any    `json:"jsonData,omitempty"`
	SecureJSONData map[string]string `json:"secureJsonData,omitempty"`
}
