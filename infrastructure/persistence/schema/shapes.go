package schema

// QueryShape names a read pattern. Each shape is served by exactly one table.
type QueryShape string

const (
	ShapeUserByID           QueryShape = "user_by_id"
	ShapeCredentialsByEmail QueryShape = "credentials_by_email"
	ShapeVideoByID          QueryShape = "video_by_id"
	ShapeVideosByOwner      QueryShape = "videos_by_owner"
	ShapeLatestVideos       QueryShape = "latest_videos_by_day"
	ShapeVideosByTag        QueryShape = "videos_by_tag"
	ShapeTagsByLetter       QueryShape = "tags_by_letter"
	ShapeRatingByVideo      QueryShape = "rating_by_video"
	ShapeUserRating         QueryShape = "rating_by_video_user"
	ShapeCommentsByVideo    QueryShape = "comments_by_video"
	ShapeCommentsByUser     QueryShape = "comments_by_user"
	ShapePlaybackEvents     QueryShape = "playback_events"
	ShapeUploadJobHistory   QueryShape = "upload_job_history"
	ShapeUploadByVideo      QueryShape = "upload_by_video"
	ShapeUploadByJob        QueryShape = "upload_by_job"
)

// Physical table names
const (
	TableUserCredentials       = "user_credentials"
	TableUsers                 = "users"
	TableVideos                = "videos"
	TableUserVideos            = "user_videos"
	TableLatestVideos          = "latest_videos"
	TableVideosByTag           = "videos_by_tag"
	TableTagsByLetter          = "tags_by_letter"
	TableVideoRating           = "video_rating"
	TableVideoRatingsByUser    = "video_ratings_by_user"
	TableCommentsByVideo       = "comments_by_video"
	TableCommentsByUser        = "comments_by_user"
	TableVideoEvent            = "video_event"
	TableEncodingJobs          = "encoding_job_notifications"
	TableUploadedVideos        = "uploaded_videos"
	TableUploadedVideosByJobID = "uploaded_videos_by_jobid"
)
