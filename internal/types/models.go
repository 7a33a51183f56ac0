package types

// Tag is a user-assigned label on a note. Labels are unique per note,
// compared case-insensitively.
type Tag struct {
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Note is the persisted record for one voice or text note. One JSON document
// per base id (filename without extension).
type Note struct {
	Filename      string   `json:"filename"`
	Title         string   `json:"title"`
	Transcription string   `json:"transcription"`
	Date          string   `json:"date,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
	CreatedTS     int64    `json:"created_ts,omitempty"`
	LengthSeconds *float64 `json:"length_seconds"`
	Language      string   `json:"language,omitempty"`
	Topics        []string `json:"topics"`
	Folder        string   `json:"folder"`
	Tags          []Tag    `json:"tags"`

	TranscriptionStatus string `json:"transcription_status,omitempty"`

	AutoCategory           string   `json:"auto_category,omitempty"`
	AutoCategoryConfidence float64  `json:"auto_category_confidence,omitempty"`
	AutoCategoryRationale  string   `json:"auto_category_rationale,omitempty"`
	AutoProgram            string   `json:"auto_program,omitempty"`
	AutoProgramConfidence  *float64 `json:"auto_program_confidence,omitempty"`
	AutoProgramRationale   string   `json:"auto_program_rationale,omitempty"`

	AudioFormat    string `json:"audio_format,omitempty"`
	StoredMime     string `json:"stored_mime,omitempty"`
	OriginalFormat string `json:"original_format,omitempty"`
	Transcoded     bool   `json:"transcoded,omitempty"`
	TranscodedFrom string `json:"transcoded_from,omitempty"`
	SampleRateHz   int    `json:"sample_rate_hz,omitempty"`
	UploadExt      string `json:"upload_extension,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
}

// BaseID returns the storage key for the note: the filename without its
// extension.
func (n *Note) BaseID() string {
	name := n.Filename
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
		if name[i] == '/' {
			break
		}
	}
	return name
}

// Program is an admin-configured classification target nested inside a
// domain. Unknown registry fields round-trip through Extra.
type Program struct {
	Key            string   `json:"key"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Domain         string   `json:"domain"`
	Keywords       []string `json:"keywords"`
	Tags           []string `json:"tags,omitempty"`
	Aliases        []string `json:"aliases,omitempty"`
	Owners         []string `json:"owners,omitempty"`
	Status         string   `json:"status,omitempty"`
	FilenamePrefix string   `json:"filename_prefix,omitempty"`
	Color          string   `json:"color,omitempty"`

	Extra map[string]any `json:"-"`
}

// CategorizationResult is the transient output of the categorizer, attached
// onto a Note after classification.
type CategorizationResult struct {
	Domain            string   `json:"domain"`
	Confidence        float64  `json:"confidence"`
	Rationale         string   `json:"rationale"`
	Program           string   `json:"program,omitempty"`
	ProgramConfidence *float64 `json:"program_confidence,omitempty"`
	ProgramRationale  string   `json:"program_rationale,omitempty"`
}
