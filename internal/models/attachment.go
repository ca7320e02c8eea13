package models

import "time"

// Attachment is owned by its parent task: rows are appended by task mutations
// and removed only when the task itself is deleted. FileName keeps the
// user-supplied name for display; StorageName is the generated blob name the
// bytes actually live under.
type Attachment struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	TaskID      uint64    `gorm:"not null;index" json:"task_id"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FileURL     string    `gorm:"type:varchar(255);not null" json:"file_url"`
	StorageName string    `gorm:"type:varchar(255)" json:"-"`
	StoragePath string    `gorm:"type:varchar(255)" json:"-"`
	FileType    string    `gorm:"type:varchar(20);not null" json:"file_type"`
	UploadedAt  time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}
