package models

// Video holds the display metadata for a platform video. Records are shared
// across users: a video tagged by two users is stored once.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	AuthorURL    string `json:"author_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// TagAssociation records that a user tagged a video with a tag.
// (UserID, VideoID, Tag) is the identity; rows are never updated in place.
type TagAssociation struct {
	UserID  string `json:"user_id"`
	VideoID string `json:"video_id"`
	Tag     string `json:"tag"`
}
