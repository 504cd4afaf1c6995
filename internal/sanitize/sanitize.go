// Package sanitize strips instance-assigned metadata from fetched entities so
// they can be recreated on another instance. Content fields (titles, panel
// JSON, connection settings) pass through untouched.
package sanitize

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/rlggyp/grafana-exim/internal/client"
)

// Folder clears the numeric id the source instance assigned.
func Folder(f client.Folder) client.Folder {
	f.ID = 0
	return f
}

// Dashboard clears instance-assigned fields and rewrites the folder
// reference. folderUID is the destination-side uid supplied by the resolver;
// an empty value places the dashboard at the root.
func Dashboard(d client.Dashboard, folderUID string) client.Dashboard {
	d.ID = 0
	d.Version = 0
	d.FolderUID = folderUID
	if len(d.Data) > 0 {
		if data, err := scrubKeys(d.Data, "id", "version", "created", "updated"); err == nil {
			d.Data = data
		}
	}
	return d
}

// Datasource clears instance-assigned identifiers and drops the write-only
// secret block. Grafana never echoes secureJsonData on reads, so anything
// present came from a snapshot edited by hand; it still cannot be trusted to
// match the destination and is removed.
func Datasource(ds client.Datasource) client.Datasource {
	ds.ID = 0
	ds.OrgID = 0
	ds.SecureJSONData = nil
	return ds
}

// ReferencedDatasources extracts the datasource uids a dashboard's panel JSON
// refers to, so the caller can warn about references that are not part of the
// migration set. Template variables ("$ds") and server-side expressions are
// skipped.
func ReferencedDatasources(d client.Dashboard) []string {
	if len(d.Data) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var uids []string
	record := func(uid string) {
		if uid == "" || uid == "__expr__" || uid[0] == '$' || seen[uid] {
			return
		}
		seen[uid] = true
		uids = append(uids, uid)
	}

	var walkPanel func(panel gjson.Result)
	walkPanel = func(panel gjson.Result) {
		record(panel.Get("datasource.uid").String())
		panel.Get("targets").ForEach(func(_, target gjson.Result) bool {
			record(target.Get("datasource.uid").String())
			return true
		})
		// rows and collapsed panels nest further panels
		panel.Get("panels").ForEach(func(_, nested gjson.Result) bool {
			walkPanel(nested)
			return true
		})
	}

	gjson.GetBytes(d.Data, "panels").ForEach(func(_, panel gjson.Result) bool {
		walkPanel(panel)
		return true
	})
	gjson.GetBytes(d.Data, "templating.list").ForEach(func(_, variable gjson.Result) bool {
		record(variable.Get("datasource.uid").String())
		return true
	})
	return uids
}

// scrubKeys removes top-level keys from a raw JSON object.
func scrubKeys(raw json.RawMessage, keys ...string) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parsing dashboard payload: %w", err)
	}
	for _, key := range keys {
		delete(obj, key)
	}
	return json.Marshal(obj)
}
