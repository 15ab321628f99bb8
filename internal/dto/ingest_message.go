package dto

// PublishDocumentMessage is the payload queued for the ingestion
// consumer.
type PublishDocumentMessage struct {
	TaskId     string `json:"task_id"`
	FileName   string `json:"file_name"`
	Content    string `json:"content"`
	SourceURL  string `json:"source_url,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}
