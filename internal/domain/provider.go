package domain

// Provider task states that end a watch. Anything else means the task is still running.
const (
	TaskStateSuccess = "success"
	TaskStateFail    = "fail"
)

// SubmitRequest carries everything the external provider needs to start a render task.
type SubmitRequest struct {
	Model       string
	Prompt      string
	ImageURL    string
	Duration    int
	Quality     string
	AspectRatio string
}

// TaskStatus is the normalized answer to one provider status query.
type TaskStatus struct {
	State        string
	ResultURL    string
	ThumbnailURL string
	Message      string
}
