package constant

type MaterialState string

const (
	MaterialStateGenerating      MaterialState = "GENERATING"
	MaterialStatePendingReview   MaterialState = "PENDING_REVIEW"
	MaterialStatePublished       MaterialState = "PUBLISHED"
	MaterialStateGenerationError MaterialState = "GENERATION_ERROR"
)

var materialTransitions = map[MaterialState][]MaterialState{
	MaterialStateGenerating:      {MaterialStatePendingReview, MaterialStateGenerationError},
	MaterialStatePendingReview:   {MaterialStatePublished},
	MaterialStateGenerationError: {MaterialStatePublished},
	MaterialStatePublished:       {MaterialStatePublished},
}

// CanTransition reports whether a record in state s may move to next.
func (s MaterialState) CanTransition(next MaterialState) bool {
	for _, allowed := range materialTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s MaterialState) String() string {
	return string(s)
}

type FileType string

const (
	FileTypeDocument FileType = "DOCUMENT"
	FileTypeSlides   FileType = "SLIDES"
	FileTypeVideo    FileType = "VIDEO"
)

type FileStatus string

const (
	FileStatusReady      FileStatus = "READY"
	FileStatusProcessing FileStatus = "PROCESSING"
	FileStatusFailed     FileStatus = "FAILED"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

type StorageProvider string

const (
	StorageProviderLocal StorageProvider = "local"
	StorageProviderMinIO StorageProvider = "minio"
	StorageProviderGCS   StorageProvider = "gcs"
)

type GeneratorMode string

const (
	GeneratorModeLocal GeneratorMode = "local"
	GeneratorModeCloud GeneratorMode = "cloud"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
