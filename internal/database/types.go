package database

import "time"

// Photo is an uploaded photo. The file lives in the media directory under
// FileName; OriginalName is the name the visitor uploaded it with.
type Photo struct {
	ID           int64     `json:"id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	PHash        uint64    `json:"-"`
	DHash        uint64    `json:"-"`
	SessionID    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ThumbName returns the file name of the photo thumbnail.
func (p *Photo) ThumbName() string {
	return "thumb_" + p.FileName + ".jpg"
}

// Identity is one class the network assigned to a photo. Score is the
// network output for the class and Error its squared distance from the
// positive codeword value.
type Identity struct {
	ID        int64     `json:"id"`
	PhotoID   int64     `json:"photo_id"`
	Rank      string    `json:"rank"`
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
	Error     float64   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredPhenotype is the feature vector computed for a photo during
// identification.
type StoredPhenotype struct {
	PhotoID   int64
	Phenotype []float32
	CreatedAt time.Time
}
