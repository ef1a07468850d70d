package catalog

// File is a row from metadata: the current-version pointer and storage
// bookkeeping for one logical filename.
type File struct {
	ID                int64
	Filename          string
	CurrentVersion    int
	Size              int64
	CompressedSize    int64
	CompressionRatio  float64
	UploadTimestamp   string
	Location          string
	Replicas          string
	StorageTier       string
	LastAccessed      *string
	AccessCount       int
	RetentionPolicy   string
	IsArchived        bool
	ArchiveDate       *string
	ContentHash       string
	DeduplicationRef  *int64
}

// Version is a row from versions: one immutable snapshot of a file.
type Version struct {
	ID             int64
	FileID         int64
	VersionNumber  int
	Timestamp      string
	Size           int64
	CompressedSize int64
	Hash           string
	StorageTier    string
	IsArchived     bool
}

// Chunk is a row from chunks: one placed, possibly-replicated shard of a
// version's content. node_name is the placement-level addition (§13).
type Chunk struct {
	ID               int64
	FileID           int64
	VersionNumber    int
	ChunkIndex       int
	ChunkLocation    string
	NodeName         string
	OriginalSize     int64
	CompressedSize   int64
	ChunkHash        string
	StorageTier      string
	DeduplicationRef *string
	Status           string
}

// ConsistencyStatus is a row from consistency_status: whether a given
// (file, version) is known synced on a given node.
type ConsistencyStatus struct {
	ID            int64
	FileID        int64
	VersionNumber int
	NodeName      string
	Status        string
	LastUpdate    string
}

// VersionChange is an audit row from version_changes, written alongside
// every version-affecting operation (create/update/rollback/revert).
type VersionChange struct {
	ID                int64
	FileID            int64
	OldVersion        int
	NewVersion        int
	ChangeType        string
	ChangeDescription string
	UserID            string
	Timestamp         string
	ParentVersion     *int
}

// DeduplicationEntry is a row from deduplication: one content hash shared
// by one or more files.
type DeduplicationEntry struct {
	ID              int64
	ContentHash     string
	ReferenceCount  int
	TotalSpaceSaved int64
	FirstSeen       string
	LastReference   string
}

// Archive is a row from archives: one concatenated cold-storage bundle for
// a file's retired chunks.
type Archive struct {
	ID              int64
	FileID          int64
	ArchiveDate     string
	ArchiveLocation string
	ArchiveSize     int64
	RestoreCount    int
	LastRestoreDate *string
	ArchiveTier     string
}

// StorageTier is a row from storage_tiers.
type StorageTier struct {
	ID               int64
	TierName         string
	MaxSize          int64
	RetentionDays    int
	AutoArchiveDays  *int
	CompressionLevel int
}

// RetentionPolicy is a row from retention_policies.
type RetentionPolicy struct {
	ID                  int64
	PolicyName          string
	MinVersions         int
	MaxVersions         int
	RetentionPeriodDays int
	AutoArchiveEnabled  bool
	ArchiveAfterDays    *int
}
