package gen

import "fmt"

// Capability identifies a generation modality.
type Capability string

const (
	CapImage       Capability = "image"
	CapVideo       Capability = "video"
	CapTTS         Capability = "tts"
	CapTalkingHead Capability = "talking_head"
)

// Result status values. A Result always carries exactly one of ResultURL
// (success) or Error (failure).
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the uniform terminal outcome of a generation request,
// regardless of vendor or modality.
type Result struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Success builds a successful Result. The URL must be non-empty.
func Success(url, taskID string) *Result {
	return &Result{Status: StatusSuccess, ResultURL: url, TaskID: taskID}
}

// Failure builds an error Result from any error. A nil error still
// produces a valid Result with a generic message.
func Failure(taskID string, err error) *Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Result{Status: StatusError, TaskID: taskID, Error: msg}
}

// OK reports whether the result is a success.
func (r *Result) OK() bool { return r.Status == StatusSuccess }

// Validate checks the success/error contract: success carries a URL and no
// error message, error carries a message and no URL.
func (r *Result) Validate() error {
	switch r.Status {
	case StatusSuccess:
		if r.ResultURL == "" {
			return fmt.Errorf("success result without result_url")
		}
		if r.Error != "" {
			return fmt.Errorf("success result with error message %q", r.Error)
		}
	case StatusError:
		if r.Error == "" {
			return fmt.Errorf("error result without error message")
		}
		if r.ResultURL != "" {
			return fmt.Errorf("error result with result_url %q", r.ResultURL)
		}
	default:
		return fmt.Errorf("unknown result status %q", r.Status)
	}
	return nil
}

// Handle identifies an in-flight asynchronous job. PollURL is set by
// vendors whose submit response names the status endpoint to use for this
// particular job; it travels with the handle so no shared lookup state is
// needed between submit and poll.
type Handle struct {
	Provider string     `json:"provider"`
	Cap      Capability `json:"capability"`
	ID       string     `json:"id"`
	PollURL  string     `json:"poll_url,omitempty"`
}

// Submission is the outcome of a submit call: a finished Result for
// synchronous vendors, or a Handle to poll for asynchronous ones.
// Exactly one field is set.
type Submission struct {
	Result *Result
	Handle *Handle
}

// ImageRequest describes an image generation request.
type ImageRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Provider    string   `json:"provider,omitempty"` // override; empty selects the registry default
	ImagePaths  []string `json:"image_paths,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
	Quality     string   `json:"quality,omitempty"`
}

// VideoRequest describes a video generation request. ImageURL may carry a
// local filesystem path or a served output route; the engine normalizes
// those back to ImagePath before submission.
type VideoRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	Provider    string `json:"provider,omitempty"`
	ImagePath   string `json:"image_path,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Duration    int    `json:"duration,omitempty"` // seconds
	Mode        string `json:"mode,omitempty"`     // vendor tier, e.g. "std" or "pro"
	Resolution  string `json:"resolution,omitempty"`
}

// SpeechRequest describes a text-to-speech request.
type SpeechRequest struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"`
	Voice    string `json:"voice,omitempty"`
}

// TalkingHeadRequest describes an avatar video request driven by an image
// and an audio track.
type TalkingHeadRequest struct {
	Model     string `json:"model"`
	Provider  string `json:"provider,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
	AudioPath string `json:"audio_path,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Duration  int    `json:"duration,omitempty"`
}
