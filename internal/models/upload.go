package models

type UploadItem struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
	Size       int64  `json:"size"`
}

type MirrorResult struct {
	Protocol       string       `json:"protocol"`
	Endpoint       string       `json:"endpoint"`
	LocalRoot      string       `json:"local_root"`
	RemoteRoot     string       `json:"remote_root"`
	Items          []UploadItem `json:"items"`
	CreatedDirs    []string     `json:"created_dirs"`
	SkippedEntries int          `json:"skipped_entries"`
	TotalFiles     int          `json:"total_files"`
	TotalSizeBytes int64        `json:"total_size_bytes"`
	TotalSizeHuman string       `json:"total_size_human"`
	OperationTime  string       `json:"operation_time"`
	UploadDuration string       `json:"upload_duration"`
	DryRun         bool         `json:"dry_run"`
}
