package constants

import "time"

// Context keys set by the auth middleware.
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
)

// Authentication parameters.
const (
	MinPasswordLength = 8
	TokenLifetime     = 24 * time.Hour
)

// Attachment policy.
const (
	MaxAttachmentsPerTask = 3
	MaxAttachmentBytes    = 5 << 20 // 5 MiB
	AttachmentFileType    = "pdf"
)

// Task validation.
const MinTitleLength = 3

// Pagination limits.
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
