package dto

type UploadDocumentRequest struct {
	FileName   string `json:"file_name" validate:"required"`
	Content    string `json:"content" validate:"required"`
	SourceURL  string `json:"source_url,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

type UploadDocumentResponse struct {
	TaskId string `json:"task_id"`
	Status string `json:"status"`
}

type TaskStatusResponse struct {
	TaskId string `json:"task_id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type ListFilesResponse struct {
	Files []string `json:"files"`
}
