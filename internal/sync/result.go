package sync

// SyncRunResult summarizes one site run. Serialized as-is by the job
// endpoints, so field names are part of the external contract.
type SyncRunResult struct {
	SiteID           int64  `json:"site_id"`
	OK               bool   `json:"ok"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	Total            int    `json:"total"`
	Online           int    `json:"online"`
	Offline          int    `json:"offline"`
	Unknown          int    `json:"unknown"`
	Added            int    `json:"added"`
	Updated          int    `json:"updated"`
	InventoryChanges int    `json:"inventory_changes"`
	StatusChanges    int    `json:"status_changes"`
	ElapsedMS        int64  `json:"elapsed_ms"`
	RunID            string `json:"run_id"`
}
