package models

type RemoteInfo struct {
	Protocol   string `json:"protocol"`
	Endpoint   string `json:"endpoint"`
	User       string `json:"user,omitempty"`
	Welcome    string `json:"welcome"`
	CurrentDir string `json:"current_dir"`
	RemoteRoot string `json:"remote_root"`
	RootExists bool   `json:"remote_root_exists"`
	CheckTime  string `json:"check_time"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}
